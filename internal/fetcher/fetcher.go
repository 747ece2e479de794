package fetcher

import (
	"context"
	"encoding/json"
)

// ScheduleFetcher retrieves the raw coopGroupingSchedule document.
type ScheduleFetcher interface {
	FetchSchedules(ctx context.Context) (json.RawMessage, error)
}
