package habits

import (
	"errors"
	"time"
)

// Queue action kinds handled by Service.
const (
	KindCheckIn = "habit.checkin"
	KindUpdate  = "habit.update"
)

// CacheKey is the cache key the habit list is stored under.
const CacheKey = "habits"

var ErrHabitNotFound = errors.New("habit not found")

// Habit is one tracked habit as the backend reports it.
type Habit struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Count         int        `json:"count"`
	LastCheckedIn *time.Time `json:"lastCheckedIn,omitempty"`
}

// CheckInPayload is the queued form of a check-in.
type CheckInPayload struct {
	HabitID string    `json:"habitId"`
	At      time.Time `json:"at"`
}

func indexOf(list []Habit, id string) int {
	for i, h := range list {
		if h.ID == id {
			return i
		}
	}
	return -1
}
