package scheduler

import (
	"context"
	"time"

	"MarketRadar/internal/ports"
)

// TimerSleeper waits on a real timer and gives up early when the context ends.
type TimerSleeper struct{}

var _ ports.Sleeper = TimerSleeper{}

// NewTimerSleeper returns the production sleeper.
func NewTimerSleeper() TimerSleeper {
	return TimerSleeper{}
}

// Sleep blocks for d; it returns ctx.Err() if the context finishes first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
