package alerting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"salmonrun-notifier/internal/schedule"
)

// DetailsURL links to the full rotation listing.
const DetailsURL = "https://splatoon3.ink/salmonrun"

const messageTimeLayout = "Monday 2 January at 3:04PM"

// RenderRotation formats the announcement for one rotation.
func RenderRotation(r schedule.Rotation) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Salmon Run rotation start: %s\n", r.StartTime.Format(messageTimeLayout)))
	builder.WriteString(fmt.Sprintf("Rotation end: %s\n", r.EndTime.Format(messageTimeLayout)))
	builder.WriteString(fmt.Sprintf("Map: %s\n", r.Stage))
	for i, weapon := range r.Weapons {
		builder.WriteString(fmt.Sprintf("Weapon %d: %s\n", i+1, weapon))
	}
	builder.WriteString(fmt.Sprintf("Boss: %s\n", r.Boss))
	builder.WriteString(fmt.Sprintf("Type: %s\n", r.Category))
	builder.WriteString("More details: " + DetailsURL)
	return builder.String()
}

// RenderEscalation formats the sustained-outage notice.
func RenderEscalation(threshold time.Duration) string {
	hours := strconv.FormatFloat(threshold.Hours(), 'f', -1, 64)
	unit := "hours"
	if hours == "1" {
		unit = "hour"
	}
	return fmt.Sprintf("Salmon Run Notifier has encountered failures for more than %s %s. The Salmonids are overwhelming us!", hours, unit)
}

func subjectOf(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "Salmon Run Notifier"
	}
	if len(line) > 120 {
		line = line[:120]
	}
	return line
}
