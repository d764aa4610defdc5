// Package textutil holds small string helpers shared by the pipeline stages.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate cuts s to at most limit runes. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// CollapseSpace trims s and folds every whitespace run into a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Snippet returns a single-line preview of s, suffixed with "..." when cut.
func Snippet(s string, limit int) string {
	clean := CollapseSpace(s)
	cut := Truncate(clean, limit)
	if cut != clean {
		return cut + "..."
	}
	return cut
}
