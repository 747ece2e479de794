package schedule

import "time"

// Category identifies the Salmon Run mode a rotation belongs to.
type Category string

const (
	CategoryRegular     Category = "Regular"
	CategoryBigRun      Category = "Big Run"
	CategoryEggstraWork Category = "Eggstra Work"
)

// Rotation is one normalized Salmon Run shift.
type Rotation struct {
	Category  Category
	StartTime time.Time
	EndTime   time.Time
	// UntilStart is StartTime minus the instant the batch was normalized.
	// Negative values mean the rotation is already running.
	UntilStart time.Duration
	Stage      string
	Boss       string
	Weapons    []string
}

// SecondsUntilStart reports UntilStart in seconds.
func (r Rotation) SecondsUntilStart() float64 {
	return r.UntilStart.Seconds()
}

// Started reports whether the rotation had begun when it was normalized.
func (r Rotation) Started() bool {
	return r.UntilStart <= 0
}

// FiredChecker answers whether a rotation start has already been announced.
type FiredChecker interface {
	HasFired(start time.Time) bool
}

// FilterAlerted drops rotations that have started and were already
// announced. Started rotations that were never announced are kept.
func FilterAlerted(rotations []Rotation, fired FiredChecker) []Rotation {
	out := make([]Rotation, 0, len(rotations))
	for _, r := range rotations {
		if r.Started() && fired.HasFired(r.StartTime) {
			continue
		}
		out = append(out, r)
	}
	return out
}
