package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salmonrun-notifier/internal/config"
	"salmonrun-notifier/internal/storage"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func feedNode(start time.Time, stage string) string {
	return fmt.Sprintf(`{"startTime":%q,"endTime":%q,"setting":{"coopStage":{"name":%q},"boss":{"name":"Cohozuna"},"weapons":[{"name":"Splattershot","__splatoon3ink_id":"a"},{"name":"Random","__splatoon3ink_id":"747937841598fff7"}]}}`,
		start.Format(time.RFC3339), start.Add(40*time.Hour).Format(time.RFC3339), stage)
}

type fixture struct {
	app      *App
	out      *bytes.Buffer
	fs       afero.Fs
	webhooks []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{out: &bytes.Buffer{}, fs: afero.NewMemMapFs()}

	feed := fmt.Sprintf(`{"data":{"coopGroupingSchedule":{"regularSchedules":{"nodes":[%s,%s]},"bigRunSchedules":{"nodes":[]},"teamContestSchedules":{"nodes":[%s]}}}}`,
		feedNode(now.Add(-time.Hour), "Jammin' Salmon Junction"),
		feedNode(now.Add(39*time.Hour), "Sockeye Station"),
		feedNode(now.Add(3*time.Hour), "Spawning Grounds"),
	)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(origin.Close)

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.webhooks = append(f.webhooks, payload["message"])
	}))
	t.Cleanup(hook.Close)

	cfg := &config.Config{
		Settings: config.SettingsConfig{
			LocalTimezone:         "UTC",
			Destinations:          []string{strings.Replace(hook.URL, "http://", "json://", 1)},
			SchedulesAPI:          origin.URL,
			FailureThresholdHours: decimal.NewFromInt(6),
		},
		Fetch:   config.FetchConfig{Timeout: time.Second, RetryDelay: time.Minute},
		Storage: config.StorageConfig{CachePath: "config/cache.temp", LedgerDriver: "file", LedgerPath: "config/last.alert"},
		Notify:  config.NotifyConfig{Timeout: time.Second},
		Export:  config.ExportConfig{MaxRotations: 10},
	}

	f.app = NewApp(cfg, "", zerolog.Nop())
	f.app.FS = f.fs
	f.app.Out = f.out
	f.app.Now = func() time.Time { return now }
	return f
}

func TestScheduleJSON(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.Schedule(context.Background(), ScheduleOptions{Format: "json"}))

	var views []rotationView
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &views))
	require.Len(t, views, 3)
	assert.Equal(t, "Jammin' Salmon Junction", views[0].Stage)
	assert.Equal(t, "Eggstra Work", views[1].Category)
	assert.Equal(t, []string{"Splattershot", "Grizzco Random"}, views[1].Weapons)
	assert.True(t, views[0].AlertAt.Equal(now), "running rotation alerts immediately")

	exists, err := afero.Exists(f.fs, "config/cache.temp")
	require.NoError(t, err)
	assert.True(t, exists, "fetch populates the cache")
}

func TestScheduleTableAndYAML(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.Schedule(context.Background(), ScheduleOptions{Format: "table", Limit: 1}))
	table := f.out.String()
	assert.Contains(t, table, "Map")
	assert.Contains(t, table, "Jammin' Salmon Junction")
	assert.NotContains(t, table, "Sockeye Station")

	f.out.Reset()
	require.NoError(t, f.app.Schedule(context.Background(), ScheduleOptions{Format: "yaml"}))
	assert.Contains(t, f.out.String(), "stage: Spawning Grounds")

	assert.Error(t, f.app.Schedule(context.Background(), ScheduleOptions{Format: "xml"}))
}

func TestAckThenLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.app.Ack(ctx, AckOptions{DryRun: true}))
	assert.Contains(t, f.out.String(), "Jammin' Salmon Junction")
	exists, err := afero.Exists(f.fs, "config/last.alert")
	require.NoError(t, err)
	assert.False(t, exists, "dry run leaves the ledger alone")

	f.out.Reset()
	require.NoError(t, f.app.Ack(ctx, AckOptions{}))
	assert.Contains(t, f.out.String(), "acknowledged Regular rotation")

	f.out.Reset()
	require.NoError(t, f.app.Ledger(ctx))
	assert.Contains(t, f.out.String(), now.Add(-time.Hour).Format(time.RFC3339))

	f.out.Reset()
	require.NoError(t, f.app.Ack(ctx, AckOptions{}))
	assert.Contains(t, f.out.String(), "nothing to acknowledge")
	assert.Empty(t, f.webhooks)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.Export(context.Background(), ExportOptions{CSVPath: "out/rotations.csv", MaxRotations: 2}))

	data, err := afero.ReadFile(f.fs, "out/rotations.csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "stage", rows[0][1])
	assert.Equal(t, "Spawning Grounds", rows[2][1])
	assert.Equal(t, now.Add(3*time.Hour).Format(time.RFC3339), rows[2][4])
}

func TestExportRequiresTarget(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.app.Export(context.Background(), ExportOptions{}))
}

func TestSimulateAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.app.SimulateAlert(ctx, SimulateOptions{}))
	require.Len(t, f.webhooks, 1)
	assert.Contains(t, f.webhooks[0], "Map: Jammin' Salmon Junction")

	require.NoError(t, f.app.SimulateAlert(ctx, SimulateOptions{Escalation: true}))
	require.Len(t, f.webhooks, 2)
	assert.Contains(t, f.webhooks[1], "more than 6 hours")

	exists, err := afero.Exists(f.fs, "config/last.alert")
	require.NoError(t, err)
	assert.False(t, exists, "simulated alerts are not recorded")
}

type lockedStore struct {
	*storage.Memory
	acquired bool
	unlocked bool
}

func (s *lockedStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if !s.acquired {
		return nil, false, nil
	}
	return func() { s.unlocked = true }, true, nil
}

func TestLockLedgerRefusesWhenHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.lockLedger(ctx, &lockedStore{Memory: storage.NewMemory()})
	require.ErrorIs(t, err, ErrLockHeld)

	store := &lockedStore{Memory: storage.NewMemory(), acquired: true}
	unlock, err := f.app.lockLedger(ctx, store)
	require.NoError(t, err)
	unlock()
	assert.True(t, store.unlocked)

	unlock, err = f.app.lockLedger(ctx, storage.NewMemory())
	require.NoError(t, err)
	unlock()
}

func TestLedgerListingLeavesCorruptFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, "config/last.alert", []byte("{not json"), 0o644))

	err := f.app.Ledger(context.Background())
	require.ErrorIs(t, err, storage.ErrCorruptLedger)

	data, err := afero.ReadFile(f.fs, "config/last.alert")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
	moved, err := afero.Glob(f.fs, "config/last.alert.corrupt.*")
	require.NoError(t, err)
	assert.Empty(t, moved)
}
