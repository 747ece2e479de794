package storage

import "time"

// AlertRecord marks a rotation that has already been announced. The start
// instant is the record's identity.
type AlertRecord struct {
	StartTime time.Time `json:"start_time"`
}
