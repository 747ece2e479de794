package failure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const threshold = 6 * time.Hour

var start = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func TestEscalatesOnceAfterThreshold(t *testing.T) {
	tr := NewTracker()
	escalations := 0
	for _, offset := range []time.Duration{0, time.Hour, 3 * time.Hour, 6*time.Hour + time.Minute} {
		if tr.RecordOutcome(false, start.Add(offset), threshold) {
			escalations++
		}
	}
	assert.Equal(t, 1, escalations)

	_, active := tr.FirstFailure()
	assert.False(t, active, "streak resets after escalating")
}

func TestNoEscalationBeforeThreshold(t *testing.T) {
	tr := NewTracker()
	for _, offset := range []time.Duration{0, 2 * time.Hour, 5*time.Hour + 59*time.Minute} {
		assert.False(t, tr.RecordOutcome(false, start.Add(offset), threshold))
	}
	first, active := tr.FirstFailure()
	assert.True(t, active)
	assert.Equal(t, start, first)
}

func TestThresholdIsStrict(t *testing.T) {
	tr := NewTracker()
	tr.RecordOutcome(false, start, threshold)
	assert.False(t, tr.RecordOutcome(false, start.Add(threshold), threshold))
	assert.True(t, tr.RecordOutcome(false, start.Add(threshold+time.Second), threshold))
}

func TestSuccessResetsStreak(t *testing.T) {
	tr := NewTracker()
	tr.RecordOutcome(false, start, threshold)
	assert.False(t, tr.RecordOutcome(true, start.Add(5*time.Hour), threshold))
	assert.False(t, tr.RecordOutcome(false, start.Add(7*time.Hour), threshold))

	first, active := tr.FirstFailure()
	assert.True(t, active)
	assert.Equal(t, start.Add(7*time.Hour), first)
}

func TestContinuingOutageEscalatesAgain(t *testing.T) {
	tr := NewTracker()
	fired := 0
	for minutes := 0; minutes <= 20*60; minutes++ {
		if tr.RecordOutcome(false, start.Add(time.Duration(minutes)*time.Minute), threshold) {
			fired++
		}
	}
	// Escalates at 6h01, then the streak restarts at 6h02 and fires again at 12h03 and 18h05.
	assert.Equal(t, 3, fired)
}
