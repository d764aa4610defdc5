package ports

import (
	"context"
	"time"

	"MarketRadar/internal/domain"
)

// FeedSource pulls the newest page of items for the given subjects.
type FeedSource interface {
	Fetch(ctx context.Context, subjects []string, limit int) ([]domain.FeedItem, error)
}

// Ledger remembers which item ids were already considered.
type Ledger interface {
	Seen(id string) bool
	Mark(id string)
}

// Classifier turns a batch into per-item verdicts. It never fails: a batch
// that cannot be classified yields no verdicts.
type Classifier interface {
	Classify(ctx context.Context, batch []domain.BufferedItem) []domain.Verdict
}

// Completer is a generative backend asked for a JSON-only answer.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Sink appends accepted records to durable storage.
type Sink interface {
	Append(ctx context.Context, records []domain.OpportunityRecord) error
}

// RecordReader lists previously persisted records, newest last.
type RecordReader interface {
	Recent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error)
}

// Notifier streams accepted opportunities to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
