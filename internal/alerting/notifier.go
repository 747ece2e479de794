package alerting

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNoDestinations indicates no notification destination is configured.
var ErrNoDestinations = errors.New("alerting: no destinations configured")

// Notifier delivers a plain-text message.
type Notifier interface {
	Notify(ctx context.Context, body string) error
}

// Destination is a single named delivery target.
type Destination interface {
	Notifier
	Name() string
}

// Fanout sends every message to all destinations, paced by a limiter.
type Fanout struct {
	destinations []Destination
	limiter      *rate.Limiter
	logger       zerolog.Logger
}

// NewFanout builds a notifier over destinations. ratePerSec <= 0 disables pacing.
func NewFanout(destinations []Destination, ratePerSec int, logger zerolog.Logger) (*Fanout, error) {
	if len(destinations) == 0 {
		return nil, ErrNoDestinations
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Fanout{
		destinations: destinations,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger.With().Str("component", "alert_fanout").Logger(),
	}, nil
}

// Notify succeeds when at least one destination accepts the message. Each
// failed destination is logged; if all fail the joined error is returned.
func (f *Fanout) Notify(ctx context.Context, body string) error {
	var errs []error
	delivered := 0
	for _, d := range f.destinations {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for send slot: %w", err)
		}
		if err := d.Notify(ctx, body); err != nil {
			f.logger.Warn().Err(err).Str("destination", d.Name()).Msg("delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errors.Join(errs...)
	}
	f.logger.Info().Int("delivered", delivered).Int("failed", len(errs)).Msg("notification sent")
	return nil
}

// Destinations returns the names of the configured targets.
func (f *Fanout) Destinations() []string {
	names := make([]string, 0, len(f.destinations))
	for _, d := range f.destinations {
		names = append(names, d.Name())
	}
	return names
}

// Nop discards messages.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

var (
	_ Notifier = (*Fanout)(nil)
	_ Notifier = Nop{}
)
