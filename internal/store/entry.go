package store

import (
	"encoding/json"
	"time"
)

// Entry is the JSON document written to the backend for every key.
//
// Timestamp and Expiry are epoch milliseconds. A nil Expiry means the entry
// never expires.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
	Expiry    *int64          `json:"expiry"`
}

// IsExpired checks whether the entry is expired at the given time.
func (e Entry) IsExpired(now time.Time) bool {
	if e.Expiry == nil {
		return false
	}
	return now.UnixMilli() > *e.Expiry
}
