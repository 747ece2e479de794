package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"salmonrun-notifier/internal/alerting"
	"salmonrun-notifier/internal/failure"
	"salmonrun-notifier/internal/fetcher"
	"salmonrun-notifier/internal/ledger"
	"salmonrun-notifier/internal/quiet"
	"salmonrun-notifier/internal/schedule"
	"salmonrun-notifier/internal/scheduler"
)

// ErrNoRotations reports a fetch that produced nothing to announce.
var ErrNoRotations = errors.New("service: no upcoming rotations")

// Options tune the notifier loop.
type Options struct {
	Location         *time.Location
	Quiet            quiet.Window
	FailureThreshold time.Duration
	RetryDelay       time.Duration
	Now              func() time.Time
}

// Service orchestrates fetching, deciding, waiting and alerting.
type Service struct {
	fetcher    fetcher.ScheduleFetcher
	normalizer *schedule.Normalizer
	ledger     *ledger.Ledger
	notifier   alerting.Notifier
	tracker    *failure.Tracker
	waiter     scheduler.Waiter
	machine    *scheduler.Machine
	logger     zerolog.Logger

	loc *time.Location
	now func() time.Time

	mu        sync.RWMutex
	quiet     quiet.Window
	threshold time.Duration

	pending []schedule.Rotation
	next    schedule.Rotation
	fireAt  time.Time
}

// New constructs the notifier service.
func New(opts Options, f fetcher.ScheduleFetcher, l *ledger.Ledger, notifier alerting.Notifier, waiter scheduler.Waiter, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 60 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 6 * time.Hour
	}
	if waiter == nil {
		waiter = scheduler.NewTimerWaiter(opts.Now)
	}
	if notifier == nil {
		notifier = alerting.Nop{}
	}

	return &Service{
		fetcher:    f,
		normalizer: schedule.NewNormalizer(opts.Location, opts.Now, logger),
		ledger:     l,
		notifier:   notifier,
		tracker:    failure.NewTracker(),
		waiter:     waiter,
		machine:    scheduler.New(scheduler.Options{Backoff: opts.RetryDelay, Now: opts.Now}, waiter, logger),
		logger:     logger.With().Str("component", "service").Logger(),
		loc:        opts.Location,
		now:        opts.Now,
		quiet:      opts.Quiet,
		threshold:  opts.FailureThreshold,
	}
}

// Run drives the notifier loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.machine.Run(ctx, s.Step)
}

// ApplySettings swaps the quiet window and escalation threshold at runtime.
func (s *Service) ApplySettings(window quiet.Window, threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiet = window
	if threshold > 0 {
		s.threshold = threshold
	}
	s.logger.Info().
		Int("quiet_start", window.Start).
		Int("quiet_end", window.End).
		Dur("failure_threshold", s.threshold).
		Msg("settings applied")
}

func (s *Service) settings() (quiet.Window, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quiet, s.threshold
}

// Step performs the work of one scheduler state.
func (s *Service) Step(ctx context.Context, state scheduler.State) (scheduler.State, error) {
	switch state {
	case scheduler.Fetching:
		return s.fetch(ctx)
	case scheduler.Deciding:
		return s.decide(), nil
	case scheduler.Waiting:
		if err := s.waiter.Wait(ctx, s.fireAt); err != nil {
			return scheduler.Waiting, err
		}
		return scheduler.Notifying, nil
	case scheduler.Notifying:
		if _, err := s.Deliver(ctx, s.next); err != nil {
			return scheduler.Notifying, err
		}
		return scheduler.Fetching, nil
	default:
		return scheduler.Fetching, nil
	}
}

func (s *Service) fetch(ctx context.Context) (scheduler.State, error) {
	rotations, err := s.Upcoming(ctx)
	if err == nil && len(rotations) == 0 {
		err = ErrNoRotations
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return scheduler.Fetching, ctxErr
		}
		s.logger.Warn().Err(err).Msg("no schedules available")
		s.recordFailure(ctx)
		return scheduler.Failed, nil
	}

	_, threshold := s.settings()
	s.tracker.RecordOutcome(true, s.now(), threshold)
	s.pending = rotations
	return scheduler.Deciding, nil
}

func (s *Service) recordFailure(ctx context.Context) {
	_, threshold := s.settings()
	now := s.now()
	if !s.tracker.RecordOutcome(false, now, threshold) {
		if first, ok := s.tracker.FirstFailure(); ok {
			s.logger.Debug().Str("failing_since", humanize.Time(first)).Msg("failure streak continues")
		}
		return
	}

	s.logger.Error().Dur("threshold", threshold).Msg("fetch failures exceeded threshold; sending notice")
	if err := s.notifier.Notify(ctx, alerting.RenderEscalation(threshold)); err != nil {
		s.logger.Error().Err(err).Msg("failed to send failure notice")
	}
}

func (s *Service) decide() scheduler.State {
	now := s.now().In(s.loc)
	s.next = s.pending[0]
	s.fireAt = s.FireTime(s.next, now)

	log := s.logger.Info().
		Str("category", string(s.next.Category)).
		Str("stage", s.next.Stage).
		Time("start_time", s.next.StartTime).
		Time("send_at", s.fireAt)

	switch {
	case !s.fireAt.After(now):
		log.Msg("sending alert now")
	case s.fireAt.After(s.next.StartTime):
		log.Str("wait", humanize.RelTime(s.fireAt, now, "ago", "from now")).
			Msg("rotation starts during quiet hours; alert deferred")
	default:
		log.Str("wait", humanize.RelTime(s.fireAt, now, "ago", "from now")).
			Msg("waiting for next rotation")
	}
	return scheduler.Waiting
}

// FireTime applies the current quiet window to r.
func (s *Service) FireTime(r schedule.Rotation, now time.Time) time.Time {
	window, _ := s.settings()
	return window.EffectiveFireTime(r.StartTime.In(s.loc), now.In(s.loc))
}

// Upcoming fetches, normalizes and filters the current schedule.
func (s *Service) Upcoming(ctx context.Context) ([]schedule.Rotation, error) {
	raw, err := s.fetcher.FetchSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch schedules: %w", err)
	}
	rotations, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return schedule.FilterAlerted(rotations, s.ledger), nil
}

// Deliver announces r unless the ledger already holds it. It reports
// whether a notification went out.
func (s *Service) Deliver(ctx context.Context, r schedule.Rotation) (bool, error) {
	if s.ledger.HasFired(r.StartTime) {
		s.logger.Info().Time("start_time", r.StartTime).Msg("rotation already alerted; skipping")
		return false, nil
	}

	body := alerting.RenderRotation(r)
	if err := s.notifier.Notify(ctx, body); err != nil {
		return false, fmt.Errorf("deliver alert: %w", err)
	}
	s.logger.Info().
		Str("category", string(r.Category)).
		Str("stage", r.Stage).
		Time("start_time", r.StartTime).
		Msg("alert sent")

	if err := s.ledger.Record(ctx, r.StartTime); err != nil {
		s.logger.Error().Err(err).Time("start_time", r.StartTime).Msg("alert sent but ledger not saved")
	}
	return true, nil
}

// Acknowledge records every started, unannounced rotation in the ledger
// without notifying, and returns them.
func (s *Service) Acknowledge(ctx context.Context) ([]schedule.Rotation, error) {
	rotations, err := s.Upcoming(ctx)
	if err != nil {
		return nil, err
	}

	var acked []schedule.Rotation
	for _, r := range rotations {
		if !r.Started() || s.ledger.HasFired(r.StartTime) {
			continue
		}
		if err := s.ledger.Record(ctx, r.StartTime); err != nil {
			return acked, err
		}
		acked = append(acked, r)
	}
	return acked, nil
}
