// Package quiet defers alerts that would land inside the operator's quiet hours.
package quiet

import "time"

// Window is a half-open [Start, End) range of local hours. Equal bounds
// disable the window. Start greater than End spans midnight.
type Window struct {
	Start int
	End   int
}

// Empty reports whether the window never applies.
func (w Window) Empty() bool {
	return w.Start == w.End
}

// Contains reports whether hour falls inside the window.
func (w Window) Contains(hour int) bool {
	switch {
	case w.Empty():
		return false
	case w.Start < w.End:
		return hour >= w.Start && hour < w.End
	default:
		return hour >= w.Start || hour < w.End
	}
}

// EffectiveFireTime returns when an alert for a rotation starting at
// candidate should be sent, given the current time now. Hours are read in
// the location of each argument, so both should be in the operator's zone.
func (w Window) EffectiveFireTime(candidate, now time.Time) time.Time {
	if w.Empty() {
		if candidate.After(now) {
			return candidate
		}
		return now
	}

	if !candidate.After(now) {
		if !w.Contains(now.Hour()) {
			return now
		}
		return w.nextEnd(now)
	}

	if !w.Contains(candidate.Hour()) {
		return candidate
	}

	fire := w.endOnDay(candidate)
	if !fire.After(candidate) {
		fire = fire.AddDate(0, 0, 1)
	}
	for !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// nextEnd is the first End:00 on or after t.
func (w Window) nextEnd(t time.Time) time.Time {
	end := w.endOnDay(t)
	if end.Before(t) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

func (w Window) endOnDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), w.End, 0, 0, 0, t.Location())
}
