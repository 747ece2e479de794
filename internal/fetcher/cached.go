package fetcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Cache is the subset of the schedule cache used by Cached.
type Cache interface {
	Read() (json.RawMessage, bool)
	Write(raw json.RawMessage) (expiry time.Time, err error)
}

// Cached serves schedules from a cache while valid and refreshes it from
// the origin otherwise.
type Cached struct {
	cache  Cache
	origin ScheduleFetcher
	logger zerolog.Logger
}

// NewCached wraps origin with cache.
func NewCached(cache Cache, origin ScheduleFetcher, logger zerolog.Logger) *Cached {
	return &Cached{
		cache:  cache,
		origin: origin,
		logger: logger.With().Str("component", "cached_fetcher").Logger(),
	}
}

// FetchSchedules implements ScheduleFetcher.
func (c *Cached) FetchSchedules(ctx context.Context) (json.RawMessage, error) {
	if raw, ok := c.cache.Read(); ok {
		return raw, nil
	}

	raw, err := c.origin.FetchSchedules(ctx)
	if err != nil {
		return nil, err
	}

	expiry, err := c.cache.Write(raw)
	if err != nil {
		// The fresh document is still usable even if it cannot be cached.
		c.logger.Warn().Err(err).Msg("schedules not cached")
		return raw, nil
	}
	c.logger.Debug().Time("expires_at", expiry).Msg("schedules cached")
	return raw, nil
}

var _ ScheduleFetcher = (*Cached)(nil)
