package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salmonrun-notifier/internal/storage"
)

var base = time.Date(2024, 5, 10, 16, 0, 0, 0, time.UTC)

func TestRecordKeepsLastThree(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	l := Open(ctx, store, zerolog.Nop())

	var starts []time.Time
	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * 40 * time.Hour)
		starts = append(starts, start)
		require.NoError(t, l.Record(ctx, start))
	}

	records := l.Records()
	require.Len(t, records, MaxRecords)
	for i, r := range records {
		assert.True(t, r.StartTime.Equal(starts[i+2]))
	}
	assert.False(t, l.HasFired(starts[0]))
	assert.False(t, l.HasFired(starts[1]))
	assert.True(t, l.HasFired(starts[4]))

	persisted, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, MaxRecords)
}

func TestHasFiredComparesInstants(t *testing.T) {
	ctx := context.Background()
	l := Open(ctx, storage.NewMemory(storage.AlertRecord{StartTime: base}), zerolog.Nop())

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.True(t, l.HasFired(base.In(tokyo)))
	assert.False(t, l.HasFired(base.Add(time.Second)))
}

func TestRecordKeepsEntryWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	l := Open(ctx, store, zerolog.Nop())

	store.SaveErr = assert.AnError
	err := l.Record(ctx, base)
	require.ErrorIs(t, err, assert.AnError)
	assert.True(t, l.HasFired(base))
	assert.Zero(t, store.Saves())

	store.SaveErr = nil
	next := base.Add(40 * time.Hour)
	require.NoError(t, l.Record(ctx, next))

	persisted, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.True(t, persisted[0].StartTime.Equal(base))
	assert.True(t, persisted[1].StartTime.Equal(next))
}

func TestOpenFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()

	store := storage.NewMemory()
	store.LoadErr = assert.AnError
	assert.Empty(t, Open(ctx, store, zerolog.Nop()).Records())

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "last.alert", []byte("]["), 0o644))
	l := Open(ctx, storage.NewFile(fs, "last.alert", zerolog.Nop()), zerolog.Nop())
	assert.Empty(t, l.Records())

	// A fresh record after recovery writes a valid file.
	require.NoError(t, l.Record(ctx, base))
	data, err := afero.ReadFile(fs, "last.alert")
	require.NoError(t, err)
	var raw []map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []map[string]string{{"start_time": "2024-05-10T16:00:00Z"}}, raw)
}

func TestOpenTrimsOversizedStore(t *testing.T) {
	var seeded []storage.AlertRecord
	for i := 0; i < 5; i++ {
		seeded = append(seeded, storage.AlertRecord{StartTime: base.Add(time.Duration(i) * time.Hour)})
	}
	l := Open(context.Background(), storage.NewMemory(seeded...), zerolog.Nop())
	assert.Len(t, l.Records(), MaxRecords)
	assert.False(t, l.HasFired(base))
}
