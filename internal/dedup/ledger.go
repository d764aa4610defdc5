// Package dedup remembers which feed item ids were already considered.
//
// The ledger is bounded: once capacity ids are stored, the least recently
// marked id is forgotten and may be processed again if the feed re-serves it.
// With the default capacity this only happens after weeks of polling.
package dedup

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"MarketRadar/internal/ports"
)

// DefaultCapacity bounds the ledger when no capacity is configured.
const DefaultCapacity = 100_000

// LRU is a bounded seen-before set.
type LRU struct {
	cache *lru.Cache[string, struct{}]
}

var _ ports.Ledger = (*LRU)(nil)

// NewLRU builds a ledger holding at most capacity ids.
func NewLRU(capacity int) (*LRU, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	return &LRU{cache: cache}, nil
}

// Seen reports whether id was marked. It does not refresh recency.
func (l *LRU) Seen(id string) bool {
	return l.cache.Contains(id)
}

// Mark records id.
func (l *LRU) Mark(id string) {
	l.cache.Add(id, struct{}{})
}

// Len returns the number of remembered ids.
func (l *LRU) Len() int {
	return l.cache.Len()
}
