package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `{
  "regularSchedules": {"nodes": [
    {"startTime": "2024-05-10T16:00:00Z", "endTime": "2024-05-12T08:00:00Z"},
    {"startTime": "2024-05-12T08:00:00Z", "endTime": "2024-05-14T00:00:00Z"}
  ]},
  "bigRunSchedules": {"nodes": [
    {"startTime": "2024-05-10T00:00:00Z", "endTime": "2024-05-11T12:00:00Z"}
  ]},
  "teamContestSchedules": null
}`

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestExpiryIsEarliestEndTime(t *testing.T) {
	expiry, err := Expiry([]byte(document))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC), expiry.UTC())
}

func TestWriteThenReadHit(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2024, 5, 11, 11, 0, 0, 0, time.UTC)
	c := New(fs, "config/cache.temp", fixedClock(now), zerolog.Nop())

	expiry, err := c.Write(json.RawMessage(document))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC), expiry.UTC())

	raw, ok := c.Read()
	require.True(t, ok)
	assert.JSONEq(t, document, string(raw))
}

func TestReadMissesOnceExpired(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer := New(fs, "cache.temp", fixedClock(time.Date(2024, 5, 11, 11, 0, 0, 0, time.UTC)), zerolog.Nop())
	_, err := writer.Write(json.RawMessage(document))
	require.NoError(t, err)

	atExpiry := New(fs, "cache.temp", fixedClock(time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC)), zerolog.Nop())
	_, ok := atExpiry.Read()
	assert.False(t, ok)
}

func TestReadMissesOnCorruptOrMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(fs, "cache.temp", fixedClock(time.Date(2024, 5, 11, 11, 0, 0, 0, time.UTC)), zerolog.Nop())

	_, ok := c.Read()
	assert.False(t, ok)

	require.NoError(t, afero.WriteFile(fs, "cache.temp", []byte("<html>"), 0o644))
	_, ok = c.Read()
	assert.False(t, ok)
}

func TestWriteRejectsDocumentWithoutEndTime(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(fs, "cache.temp", nil, zerolog.Nop())

	_, err := c.Write(json.RawMessage(`{"regularSchedules":{"nodes":[{"endTime":"soon"}]}}`))
	require.ErrorIs(t, err, ErrNoExpiry)

	exists, err := afero.Exists(fs, "cache.temp")
	require.NoError(t, err)
	assert.False(t, exists)
}
