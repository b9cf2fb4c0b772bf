package frameloop

import (
	"context"
	"time"
)

// DefaultInterval approximates a 60 Hz display refresh.
const DefaultInterval = time.Second / 60

// Scheduler paces the loop. Next blocks until the next iteration is due and
// returns an error once ctx ends.
type Scheduler interface {
	Next(ctx context.Context) error
}

// TickerScheduler fires at a fixed interval. Ticks missed while an iteration
// runs long are dropped rather than queued.
type TickerScheduler struct {
	ticker *time.Ticker
}

func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TickerScheduler{ticker: time.NewTicker(interval)}
}

func (s *TickerScheduler) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.C:
		return nil
	}
}

func (s *TickerScheduler) Stop() {
	s.ticker.Stop()
}

// ManualScheduler releases one iteration per Tick. Because Next is only
// re-entered after an iteration finishes, a Tick that returns true also
// means every earlier iteration has completed.
type ManualScheduler struct {
	ticks chan struct{}
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{ticks: make(chan struct{})}
}

func (s *ManualScheduler) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticks:
		return nil
	}
}

// Tick waits up to a second for the loop to accept an iteration and reports
// whether it did.
func (s *ManualScheduler) Tick() bool {
	select {
	case s.ticks <- struct{}{}:
		return true
	case <-time.After(time.Second):
		return false
	}
}
