// Package failure tracks consecutive fetch failures and decides when an
// outage deserves its own notification.
package failure

import (
	"sync"
	"time"
)

// Tracker records the start of the current failure streak.
type Tracker struct {
	mu           sync.Mutex
	firstFailure *time.Time
}

// NewTracker returns a tracker with no active streak.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordOutcome folds one fetch outcome into the streak and reports whether
// an escalation should be sent. A streak escalates at most once: the window
// resets after firing, so a continuing outage escalates again only after
// another full threshold.
func (t *Tracker) RecordOutcome(success bool, now time.Time, threshold time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if success {
		t.firstFailure = nil
		return false
	}

	if t.firstFailure == nil {
		first := now
		t.firstFailure = &first
		return false
	}

	if now.Sub(*t.firstFailure) > threshold {
		t.firstFailure = nil
		return true
	}
	return false
}

// FirstFailure returns the start of the current streak, if any.
func (t *Tracker) FirstFailure() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstFailure == nil {
		return time.Time{}, false
	}
	return *t.firstFailure, true
}
