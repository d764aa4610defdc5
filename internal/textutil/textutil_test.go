package textutil

import "testing"

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short", in: "abc", limit: 5, want: "abc"},
		{name: "exact", in: "abcde", limit: 5, want: "abcde"},
		{name: "cut", in: "abcdef", limit: 3, want: "abc"},
		{name: "runes", in: "çğüşöı", limit: 2, want: "çğ"},
		{name: "disabled", in: "abcdef", limit: 0, want: "abcdef"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tc.in, tc.limit); got != tc.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	if got := Snippet("  hello \n\t world  ", 50); got != "hello world" {
		t.Fatalf("unexpected snippet: %q", got)
	}
	if got := Snippet("hello world", 5); got != "hello..." {
		t.Fatalf("unexpected cut snippet: %q", got)
	}
}
