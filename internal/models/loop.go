package models

import (
	"time"

	"github.com/google/uuid"
)

type LoopType string

const (
	LoopInfinite LoopType = "infinite"
	LoopDuration LoopType = "duration"
	LoopCount    LoopType = "count"
)

// LoopConfig is a stored loop policy: how long (or how many times) a stream
// repeats its playlist. VideoIDs is the ordered playlist; a single-element
// list means the triggering video repeated.
type LoopConfig struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Type          LoopType    `json:"type"`
	VideoIDs      []uuid.UUID `json:"video_ids"`
	DurationHours int         `json:"duration_hours,omitempty"`
	RepeatCount   int         `json:"repeat_count,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Infinite reports whether the policy never ends on its own.
func (c LoopConfig) Infinite() bool { return c.Type == LoopInfinite }

type LoopSessionStatus string

const (
	LoopSessionActive    LoopSessionStatus = "active"
	LoopSessionCompleted LoopSessionStatus = "completed"
)

// LoopSession tracks one looped stream run against its config.
type LoopSession struct {
	ID        uuid.UUID         `json:"id"`
	ConfigID  uuid.UUID         `json:"config_id"`
	StreamID  uuid.UUID         `json:"stream_id"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
	Iteration int               `json:"iteration"`
	Status    LoopSessionStatus `json:"status"`
}
