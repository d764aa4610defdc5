package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"MarketRadar/internal/batch"
	"MarketRadar/internal/domain"
	"MarketRadar/internal/infrastructure/feed"
	"MarketRadar/internal/ports"
	"MarketRadar/internal/reconcile"
	"MarketRadar/internal/textutil"
)

// ItemFilter decides whether a fetched item is worth classifying.
type ItemFilter interface {
	Accepts(item domain.FeedItem) bool
}

// ScanLoopDeps wires the driven adapters into the scan loop.
type ScanLoopDeps struct {
	Source     ports.FeedSource
	Ledger     ports.Ledger
	Filter     ItemFilter
	Buffer     *batch.Buffer
	Classifier ports.Classifier
	Reconciler *reconcile.Reconciler
	Sink       ports.Sink
	Notifier   ports.Notifier
	Sleeper    ports.Sleeper
	Logger     *slog.Logger
	NewID      func() string
}

// ScanLoopOptions holds the loop's cadence and fetch parameters.
type ScanLoopOptions struct {
	Subjects      []string
	PageSize      int
	Interval      time.Duration
	RateLimitWait time.Duration
	ErrorBackoff  time.Duration
}

// CycleReport summarizes one polling cycle.
type CycleReport struct {
	CycleID   string
	Fetched   int
	Fresh     int
	Buffered  int
	Batches   int
	Persisted int
	Rejected  int
}

// ScanLoop polls the feed and turns batches of promising items into records.
// It is driven by a single goroutine; only State is safe to call concurrently.
type ScanLoop struct {
	source     ports.FeedSource
	ledger     ports.Ledger
	filter     ItemFilter
	buffer     *batch.Buffer
	classifier ports.Classifier
	reconciler *reconcile.Reconciler
	sink       ports.Sink
	notifier   ports.Notifier
	sleeper    ports.Sleeper
	logger     *slog.Logger
	newID      func() string
	opts       ScanLoopOptions

	state atomic.Int32
}

// NewScanLoop constructs the orchestration component.
func NewScanLoop(deps ScanLoopDeps, opts ScanLoopOptions) *ScanLoop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &ScanLoop{
		source:     deps.Source,
		ledger:     deps.Ledger,
		filter:     deps.Filter,
		buffer:     deps.Buffer,
		classifier: deps.Classifier,
		reconciler: deps.Reconciler,
		sink:       deps.Sink,
		notifier:   deps.Notifier,
		sleeper:    deps.Sleeper,
		logger:     logger,
		newID:      newID,
		opts:       opts,
	}
}

// State reports the current phase.
func (l *ScanLoop) State() State {
	return State(l.state.Load())
}

func (l *ScanLoop) setState(s State) {
	l.state.Store(int32(s))
}

// Run repeats cycles until ctx is cancelled, then returns nil.
func (l *ScanLoop) Run(ctx context.Context) error {
	defer l.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return nil
		}

		report, err := l.RunCycle(ctx)
		wait := l.opts.Interval
		switch {
		case errors.Is(err, feed.ErrRateLimited):
			wait = l.opts.RateLimitWait
			l.logger.Warn("feed rate limited", "cycle_id", report.CycleID, "wait", wait)
		case err != nil:
			wait = l.opts.ErrorBackoff
			l.logger.Error("scan cycle failed", "cycle_id", report.CycleID, "wait", wait, "error", err)
		}

		l.setState(StateSleeping)
		if err := l.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// RunCycle fetches one page and processes every item on it. Full batches are
// classified and persisted as soon as they fill; leftovers stay buffered.
func (l *ScanLoop) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: l.newID()}
	logger := l.logger.With("cycle_id", report.CycleID)

	l.setState(StateFetching)
	items, err := l.source.Fetch(context.WithoutCancel(ctx), l.opts.Subjects, l.opts.PageSize)
	if err != nil {
		l.setState(StateIdle)
		return report, fmt.Errorf("fetch feed: %w", err)
	}
	report.Fetched = len(items)

	for _, item := range items {
		l.setState(StateFiltering)
		if l.ledger.Seen(item.ID) {
			continue
		}
		// Marked before processing so a lost batch is never re-fetched.
		l.ledger.Mark(item.ID)
		report.Fresh++

		if l.filter != nil && !l.filter.Accepts(item) {
			continue
		}

		l.setState(StateBuffering)
		l.buffer.Add(item)
		report.Buffered++
		logger.Debug("item buffered", "id", item.ID, "title", textutil.Snippet(item.Title, 60), "pending", l.buffer.Len())

		if l.buffer.IsFull() {
			persisted, rejected := l.processBatch(ctx, logger, l.buffer.Drain())
			report.Batches++
			report.Persisted += persisted
			report.Rejected += rejected
		}
	}

	l.setState(StateIdle)
	logger.Info("scan cycle complete",
		"fetched", report.Fetched,
		"fresh", report.Fresh,
		"buffered", report.Buffered,
		"batches", report.Batches,
		"persisted", report.Persisted,
		"pending", l.buffer.Len())
	return report, nil
}

// Flush classifies whatever is buffered, even a partial batch.
func (l *ScanLoop) Flush(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: l.newID()}
	if l.buffer.Len() == 0 {
		return report, nil
	}
	logger := l.logger.With("cycle_id", report.CycleID)
	persisted, rejected := l.processBatch(ctx, logger, l.buffer.Drain())
	l.setState(StateIdle)
	report.Batches = 1
	report.Persisted = persisted
	report.Rejected = rejected
	return report, nil
}

func (l *ScanLoop) processBatch(ctx context.Context, logger *slog.Logger, items []domain.BufferedItem) (int, int) {
	l.setState(StateClassifying)
	logger.Info("classifying batch", "size", len(items))
	verdicts := l.classifier.Classify(ctx, items)
	if len(verdicts) == 0 {
		logger.Warn("batch produced no verdicts", "size", len(items))
		return 0, 0
	}

	result := l.reconciler.Reconcile(items, verdicts)
	for _, rej := range result.Rejected {
		if rej.Reason == reconcile.ReasonBelowThreshold {
			logger.Info("opportunity below threshold", "index", rej.Index, "score", rej.Score, "link", rej.Permalink)
			continue
		}
		logger.Debug("verdict dropped", "index", rej.Index, "reason", string(rej.Reason), "link", rej.Permalink)
	}
	if len(result.Records) == 0 {
		return 0, len(result.Rejected)
	}

	l.setState(StatePersisting)
	writeCtx := context.WithoutCancel(ctx)
	if err := l.sink.Append(writeCtx, result.Records); err != nil {
		logger.Error("persist batch failed, records lost", "records", len(result.Records), "error", err)
		return 0, len(result.Rejected)
	}
	for _, rec := range result.Records {
		logger.Info("opportunity found", "score", rec.Score, "pain_point", textutil.Snippet(rec.PainPoint, 80), "link", rec.Permalink)
	}

	if l.notifier != nil {
		if err := l.notifier.PublishDigest(writeCtx, buildDigestMessage(result.Records)); err != nil {
			logger.Warn("notify failed", "error", err)
		}
	}
	return len(result.Records), len(result.Rejected)
}

func (l *ScanLoop) sleep(ctx context.Context, d time.Duration) error {
	if l.sleeper == nil {
		return ctx.Err()
	}
	return l.sleeper.Sleep(ctx, d)
}

func buildDigestMessage(records []domain.OpportunityRecord) string {
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "- [%d/10] %s\nIdea: %s\nAudience: %s\n%s\n\n",
			rec.Score,
			rec.PainPoint,
			rec.SuggestedSolution,
			rec.TargetAudience,
			rec.Permalink)
	}
	return strings.TrimRight(b.String(), "\n")
}
