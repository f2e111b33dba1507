package dto

// WSEvent is a WebSocket message for real-time lifecycle delivery.
type WSEvent struct {
	Type string `json:"type"` // started, ended, crashed, scheduled_started, scheduled_error, conflict_resolved, loop_iteration
	Data any    `json:"data,omitempty"`
}
