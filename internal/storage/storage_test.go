package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salmonrun-notifier/internal/config"
)

func sampleRecords() []AlertRecord {
	base := time.Date(2024, 5, 10, 16, 0, 0, 0, time.UTC)
	return []AlertRecord{
		{StartTime: base},
		{StartTime: base.Add(40 * time.Hour)},
	}
}

func TestFileRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFile(fs, "config/last.alert", zerolog.Nop())
	ctx := context.Background()

	records, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.SaveLedger(ctx, sampleRecords()))

	loaded, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for i, want := range sampleRecords() {
		assert.True(t, want.StartTime.Equal(loaded[i].StartTime))
	}

	data, err := afero.ReadFile(fs, "config/last.alert")
	require.NoError(t, err)
	var raw []map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2024-05-10T16:00:00Z", raw[0]["start_time"])

	leftovers, err := afero.Glob(fs, "config/.last.alert.tmp-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileQuarantinesCorruptLedger(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "last.alert", []byte("{not json"), 0o644))

	store := NewFile(fs, "last.alert", zerolog.Nop())
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	records, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	exists, err := afero.Exists(fs, "last.alert.corrupt.1700000000")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = afero.Exists(fs, "last.alert")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFilePeekLeavesCorruptLedgerInPlace(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "last.alert", []byte("{not json"), 0o644))

	store := NewFile(fs, "last.alert", zerolog.Nop())
	_, err := store.PeekLedger(context.Background())
	require.ErrorIs(t, err, ErrCorruptLedger)

	exists, err := afero.Exists(fs, "last.alert")
	require.NoError(t, err)
	assert.True(t, exists)
	moved, err := afero.Glob(fs, "last.alert.corrupt.*")
	require.NoError(t, err)
	assert.Empty(t, moved)

	require.NoError(t, store.SaveLedger(context.Background(), sampleRecords()))
	records, err := store.PeekLedger(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFileEmptyLedger(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "last.alert", []byte("  \n"), 0o644))

	records, err := NewFile(fs, "last.alert", zerolog.Nop()).LoadLedger(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveLedger(ctx, sampleRecords()))
	next := append(sampleRecords()[1:], AlertRecord{StartTime: sampleRecords()[1].StartTime.Add(40 * time.Hour)})
	require.NoError(t, store.SaveLedger(ctx, next))

	loaded, err := store.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.True(t, next[0].StartTime.Equal(loaded[0].StartTime))
	assert.True(t, next[1].StartTime.Equal(loaded[1].StartTime))
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{LedgerDriver: "file", LedgerPath: "last.alert"}, afero.NewMemMapFs(), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &File{}, store)

	store, err = Open(ctx, config.StorageConfig{LedgerDriver: "sqlite3", SQLitePath: filepath.Join(t.TempDir(), "ledger.db")}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.StorageConfig{LedgerDriver: "postgresql"}, nil, zerolog.Nop())
	require.Error(t, err)

	_, err = Open(ctx, config.StorageConfig{LedgerDriver: "redis"}, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestPostgresRequiresPool(t *testing.T) {
	var store *Postgres
	_, err := store.LoadLedger(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, _, err = NewPostgres(nil).TryAdvisoryLock(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMemoryErrors(t *testing.T) {
	store := NewMemory(sampleRecords()...)
	store.SaveErr = assert.AnError

	err := store.SaveLedger(context.Background(), nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, store.Saves())

	records, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
