package dedup

import (
	"fmt"
	"testing"
)

func TestMarkThenSeen(t *testing.T) {
	t.Parallel()

	l, err := NewLRU(10)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}

	if l.Seen("abc") {
		t.Fatal("fresh ledger must not report ids as seen")
	}
	l.Mark("abc")
	for i := 0; i < 3; i++ {
		if !l.Seen("abc") {
			t.Fatalf("id not seen after mark (check %d)", i)
		}
	}
	l.Mark("abc")
	if l.Len() != 1 {
		t.Fatalf("expected 1 id, got %d", l.Len())
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	l, err := NewLRU(3)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	for i := 0; i < 4; i++ {
		l.Mark(fmt.Sprintf("id-%d", i))
	}

	if l.Len() != 3 {
		t.Fatalf("expected 3 ids, got %d", l.Len())
	}
	if l.Seen("id-0") {
		t.Fatal("oldest id should have been evicted")
	}
	if !l.Seen("id-3") {
		t.Fatal("newest id missing")
	}
}

func TestDefaultCapacity(t *testing.T) {
	t.Parallel()

	l, err := NewLRU(0)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	for i := 0; i < 1000; i++ {
		l.Mark(fmt.Sprintf("id-%d", i))
	}
	if !l.Seen("id-0") {
		t.Fatal("default capacity evicted too early")
	}
}
