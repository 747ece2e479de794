// Package cache keeps the last fetched schedule document on disk until the
// earliest rotation in it ends.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"salmonrun-notifier/internal/storage"
)

// ErrNoExpiry is returned when a document carries no parseable endTime.
var ErrNoExpiry = errors.New("cache: document has no rotation end time")

// Cache is a single-file schedule cache.
type Cache struct {
	fs     afero.Fs
	path   string
	now    func() time.Time
	logger zerolog.Logger
}

// New returns a cache stored at path on fs. A nil now uses time.Now.
func New(fs afero.Fs, path string, now func() time.Time, logger zerolog.Logger) *Cache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		fs:     fs,
		path:   path,
		now:    now,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Read returns the cached document while it is still valid. Missing, corrupt
// and expired files all report a miss.
func (c *Cache) Read() (json.RawMessage, bool) {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		return nil, false
	}

	expiry, err := Expiry(data)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", c.path).Msg("cache unusable")
		return nil, false
	}

	now := c.now()
	if !now.Before(expiry) {
		c.logger.Debug().Time("expired_at", expiry).Msg("cache expired")
		return nil, false
	}

	c.logger.Debug().
		Time("expires_at", expiry).
		Dur("remaining", expiry.Sub(now)).
		Msg("using cached schedules")
	return json.RawMessage(data), true
}

// Write stores raw and returns its expiry. Documents without an expiry are
// not written.
func (c *Cache) Write(raw json.RawMessage) (time.Time, error) {
	expiry, err := Expiry(raw)
	if err != nil {
		return time.Time{}, err
	}
	if err := storage.WriteFileAtomic(c.fs, c.path, raw, 0o644); err != nil {
		return time.Time{}, fmt.Errorf("write cache: %w", err)
	}
	return expiry, nil
}

type node struct {
	EndTime string `json:"endTime"`
}

type container struct {
	Nodes []json.RawMessage `json:"nodes"`
}

// Expiry returns the earliest endTime across every node of every category.
// Nodes with an unparseable endTime are ignored.
func Expiry(raw []byte) (time.Time, error) {
	var categories map[string]json.RawMessage
	if err := json.Unmarshal(raw, &categories); err != nil {
		return time.Time{}, fmt.Errorf("decode cache document: %w", err)
	}

	var earliest time.Time
	for _, body := range categories {
		var c container
		if err := json.Unmarshal(body, &c); err != nil {
			continue
		}
		for _, rawNode := range c.Nodes {
			var n node
			if err := json.Unmarshal(rawNode, &n); err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, n.EndTime)
			if err != nil {
				continue
			}
			if earliest.IsZero() || end.Before(earliest) {
				earliest = end
			}
		}
	}

	if earliest.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return earliest, nil
}
