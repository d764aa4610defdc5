package filter

import (
	"strings"
	"unicode/utf8"

	"MarketRadar/internal/domain"
)

// Filter is the lexical pre-screen deciding whether an item deserves a classifier call.
type Filter struct {
	minBodyLength int
	triggers      []string
}

// New lowercases the trigger phrases once; blank phrases are ignored.
func New(minBodyLength int, triggers []string) *Filter {
	cleaned := make([]string, 0, len(triggers))
	for _, phrase := range triggers {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		cleaned = append(cleaned, phrase)
	}
	return &Filter{minBodyLength: minBodyLength, triggers: cleaned}
}

// Accepts rejects low-signal bodies, then looks for any trigger phrase in title and body.
func (f *Filter) Accepts(item domain.FeedItem) bool {
	if utf8.RuneCountInString(item.Body) < f.minBodyLength {
		return false
	}

	text := strings.ToLower(item.Title + " " + item.Body)
	for _, phrase := range f.triggers {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
