package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// State names a phase of the notifier loop.
type State int

const (
	Fetching State = iota
	Deciding
	Waiting
	Notifying
	Failed
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Deciding:
		return "deciding"
	case Waiting:
		return "waiting"
	case Notifying:
		return "notifying"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StepFunc performs the work of one state and returns the next state.
type StepFunc func(ctx context.Context, state State) (State, error)

// Options tune scheduler behaviour.
type Options struct {
	// Backoff is how long the Failed state waits before fetching again.
	Backoff time.Duration
	Now     func() time.Time
}

// Machine drives a StepFunc through its states until the context ends.
type Machine struct {
	opts   Options
	waiter Waiter
	logger zerolog.Logger
}

// New constructs a Machine instance.
func New(opts Options, waiter Waiter, logger zerolog.Logger) *Machine {
	if opts.Backoff <= 0 {
		panic("scheduler backoff must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if waiter == nil {
		waiter = NewTimerWaiter(opts.Now)
	}
	return &Machine{opts: opts, waiter: waiter, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, stepping through states until ctx is cancelled. Step errors
// and panics send the machine to Failed; only cancellation stops it.
func (m *Machine) Run(ctx context.Context, step StepFunc) error {
	state := Fetching
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if state == Failed {
			until := m.opts.Now().Add(m.opts.Backoff)
			m.logger.Info().Dur("backoff", m.opts.Backoff).Time("retry_at", until).Msg("retrying after backoff")
			if err := m.waiter.Wait(ctx, until); err != nil {
				return err
			}
			state = Fetching
			continue
		}

		next, err := m.safeStep(ctx, step, state)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			m.logger.Error().Err(err).Str("state", state.String()).Msg("step failed")
			state = Failed
			continue
		}

		if next != state {
			m.logger.Debug().Str("from", state.String()).Str("to", next.String()).Msg("state transition")
		}
		state = next
	}
}

func (m *Machine) safeStep(ctx context.Context, step StepFunc, state State) (next State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", state, r)
		}
	}()
	return step(ctx, state)
}
