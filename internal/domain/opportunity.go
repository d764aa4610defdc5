package domain

import "time"

// FeedItem is one post returned by a feed source. Items are immutable once fetched.
type FeedItem struct {
	ID        string
	Title     string
	Body      string
	Permalink string
}

// BufferedItem is a filtered item waiting for classification inside one batch.
type BufferedItem struct {
	Index     int
	Text      string
	Permalink string
}

// Verdict is the classifier's judgment for one buffered item.
// Index is -1 when the classifier omitted it; Score is nil when absent.
type Verdict struct {
	Index             int
	IsOpportunity     bool
	PainPoint         string
	TargetAudience    string
	SuggestedSolution string
	Score             *int
}

// OpportunityRecord is an accepted verdict joined with its source permalink.
type OpportunityRecord struct {
	Timestamp         time.Time
	Score             int
	PainPoint         string
	SuggestedSolution string
	TargetAudience    string
	Permalink         string
}
