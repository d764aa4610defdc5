package classify

import (
	"context"
	"log/slog"
	"time"

	"MarketRadar/internal/domain"
	"MarketRadar/internal/ports"
)

// Options tunes prompt size, acceptance hint, retries and the happy-path cooldown.
type Options struct {
	MaxTextChars int
	MinScore     int
	Cooldown     time.Duration
	Policy       Policy
}

// Adapter implements ports.Classifier on top of a JSON-mode completer.
type Adapter struct {
	backend ports.Completer
	opts    Options
	sleeper ports.Sleeper
	logger  *slog.Logger
}

var _ ports.Classifier = (*Adapter)(nil)

// NewAdapter wires a backend; a zero Policy falls back to DefaultPolicy.
func NewAdapter(backend ports.Completer, opts Options, sleeper ports.Sleeper, logger *slog.Logger) *Adapter {
	if opts.Policy.MaxRetries <= 0 {
		opts.Policy = DefaultPolicy
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{backend: backend, opts: opts, sleeper: sleeper, logger: logger}
}

// Classify sends the whole batch in one request. Any failure yields no verdicts;
// the batch is never retried on a later cycle.
func (a *Adapter) Classify(ctx context.Context, batch []domain.BufferedItem) []domain.Verdict {
	if len(batch) == 0 || a.backend == nil {
		return nil
	}

	prompt := BuildPrompt(batch, a.opts.MaxTextChars, a.opts.MinScore)
	// In-flight requests are left to finish or time out on their own.
	callCtx := context.WithoutCancel(ctx)

	for attempt := 0; ; attempt++ {
		a.logger.Debug("classifier request", "batch", len(batch), "attempt", attempt+1)

		content, err := a.backend.Complete(callCtx, SystemPrompt, prompt)
		if err == nil {
			a.cooldown(ctx)
			verdicts, decodeErr := DecodeVerdicts(content)
			if decodeErr != nil {
				a.logger.Warn("classifier payload rejected", "batch", len(batch), "error", decodeErr)
				return nil
			}
			return verdicts
		}

		wait, retry := NextWait(a.opts.Policy, attempt, err)
		if !retry {
			if IsQuotaError(err) {
				a.logger.Warn("classifier quota exhausted, batch skipped",
					"batch", len(batch), "attempts", attempt+1, "error", err)
			} else {
				a.logger.Error("classifier request failed, batch skipped", "batch", len(batch), "error", err)
			}
			return nil
		}

		a.logger.Warn("classifier rate limited, backing off",
			"attempt", attempt+1, "wait", wait, "error", err)
		if err := a.wait(ctx, wait); err != nil {
			a.logger.Info("classifier backoff interrupted", "error", err)
			return nil
		}
	}
}

func (a *Adapter) cooldown(ctx context.Context) {
	if a.opts.Cooldown <= 0 {
		return
	}
	_ = a.wait(ctx, a.opts.Cooldown)
}

func (a *Adapter) wait(ctx context.Context, d time.Duration) error {
	if a.sleeper == nil {
		return ctx.Err()
	}
	return a.sleeper.Sleep(ctx, d)
}
