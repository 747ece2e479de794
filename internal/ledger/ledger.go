// Package ledger remembers which rotations have already been announced.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salmonrun-notifier/internal/storage"
)

// MaxRecords bounds the ledger; the oldest records are evicted first.
const MaxRecords = 3

// Ledger is a bounded, persisted list of fired rotation starts.
type Ledger struct {
	mu      sync.Mutex
	store   storage.LedgerStore
	records []storage.AlertRecord
	logger  zerolog.Logger
}

// Open loads the ledger from store. A store that cannot be read yields an
// empty ledger.
func Open(ctx context.Context, store storage.LedgerStore, logger zerolog.Logger) *Ledger {
	l := &Ledger{
		store:  store,
		logger: logger.With().Str("component", "ledger").Logger(),
	}

	records, err := store.LoadLedger(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("ledger unreadable; starting empty")
		records = nil
	}
	l.records = trim(records)
	return l
}

// HasFired reports whether a rotation starting at start was announced.
func (l *Ledger) HasFired(start time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.StartTime.Equal(start) {
			l.logger.Debug().Time("start_time", start).Msg("rotation already alerted")
			return true
		}
	}
	return false
}

// Record appends start and persists the ledger. The in-memory view is
// updated even when the write fails, so an announced rotation is never
// announced twice by this process; the next Record rewrites the full list.
func (l *Ledger) Record(ctx context.Context, start time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]storage.AlertRecord, 0, len(l.records)+1)
	next = append(next, l.records...)
	l.records = trim(append(next, storage.AlertRecord{StartTime: start}))

	if err := l.store.SaveLedger(ctx, l.records); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	l.logger.Debug().Time("start_time", start).Int("records", len(l.records)).Msg("ledger updated")
	return nil
}

// Records returns a copy of the ledger, oldest first.
func (l *Ledger) Records() []storage.AlertRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]storage.AlertRecord(nil), l.records...)
}

func trim(records []storage.AlertRecord) []storage.AlertRecord {
	if len(records) <= MaxRecords {
		return records
	}
	return append([]storage.AlertRecord(nil), records[len(records)-MaxRecords:]...)
}
