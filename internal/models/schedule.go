package models

import (
	"time"

	"github.com/google/uuid"
)

// Schedule triggers a stream on a weekly recurrence: the given weekdays
// (0=Sunday..6=Saturday) at TimeOfDay ("HH:MM", server local time).
type Schedule struct {
	ID           uuid.UUID   `json:"id"`
	VideoID      uuid.UUID   `json:"video_id"`
	PlatformIDs  []uuid.UUID `json:"platform_ids"`
	Days         []int       `json:"days"`
	TimeOfDay    string      `json:"time_of_day"`
	Active       bool        `json:"active"`
	LoopConfigID *uuid.UUID  `json:"loop_config_id,omitempty"`
	LastRun      *time.Time  `json:"last_run,omitempty"`
	NextRun      *time.Time  `json:"next_run,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HasDay reports whether the schedule covers the given weekday.
func (s Schedule) HasDay(day time.Weekday) bool {
	for _, d := range s.Days {
		if d == int(day) {
			return true
		}
	}
	return false
}

// ScheduleLog is an append-only audit entry for one schedule action.
type ScheduleLog struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}
