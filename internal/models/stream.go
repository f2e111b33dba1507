package models

import (
	"time"

	"github.com/google/uuid"
)

type StreamStatus string

const (
	StreamStatusStreaming StreamStatus = "streaming"
	StreamStatusCompleted StreamStatus = "completed"
	StreamStatusError     StreamStatus = "error"
	StreamStatusStopped   StreamStatus = "stopped"
	StreamStatusCrashed   StreamStatus = "crashed"
)

// StreamRecord is the persisted history of one start attempt for a
// (video, platform) pair. A restart writes a new record; records are never
// reused.
type StreamRecord struct {
	ID            uuid.UUID    `json:"id"`
	VideoID       uuid.UUID    `json:"video_id"`
	PlatformID    uuid.UUID    `json:"platform_id"`
	Status        StreamStatus `json:"status"`
	ProcessPID    int          `json:"process_pid"`
	StartedAt     time.Time    `json:"started_at"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	LoopSessionID *uuid.UUID   `json:"loop_session_id,omitempty"`
}

// StreamHistoryEntry is a StreamRecord joined with display names.
type StreamHistoryEntry struct {
	StreamRecord
	VideoName    string `json:"video_name"`
	PlatformName string `json:"platform_name"`
	PlatformKind string `json:"platform_kind"`
}
