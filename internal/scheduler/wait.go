package scheduler

import (
	"context"
	"time"
)

// MaxSleep caps a single timer so a suspended host or clock jump is noticed
// within a minute.
const MaxSleep = 60 * time.Second

// Waiter blocks until a wall-clock instant or context cancellation.
type Waiter interface {
	Wait(ctx context.Context, until time.Time) error
}

// TimerWaiter sleeps in bounded chunks, re-reading the clock after each.
type TimerWaiter struct {
	now      func() time.Time
	maxSleep time.Duration
}

// NewTimerWaiter returns a waiter using now as its clock.
func NewTimerWaiter(now func() time.Time) *TimerWaiter {
	if now == nil {
		now = time.Now
	}
	return &TimerWaiter{now: now, maxSleep: MaxSleep}
}

// Wait returns nil once until has passed, or ctx.Err() if cancelled first.
func (w *TimerWaiter) Wait(ctx context.Context, until time.Time) error {
	for {
		remaining := until.Sub(w.now())
		if remaining <= 0 {
			return nil
		}
		if remaining > w.maxSleep {
			remaining = w.maxSleep
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
