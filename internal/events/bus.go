// Package events carries lifecycle notifications from the registry and the
// schedule engine to the transport layer. Delivery is fire-and-forget: a
// slow subscriber drops events rather than blocking the core.
package events

import (
	"sync"

	"github.com/google/uuid"
)

const (
	TypeStarted          = "started"
	TypeEnded            = "ended"
	TypeCrashed          = "crashed"
	TypeScheduledStarted = "scheduled_started"
	TypeScheduledError   = "scheduled_error"
	TypeConflictResolved = "conflict_resolved"
	TypeLoopIteration    = "loop_iteration"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type StreamStarted struct {
	VideoID    uuid.UUID `json:"video_id"`
	PlatformID uuid.UUID `json:"platform_id"`
	PID        int       `json:"pid"`
}

type StreamEnded struct {
	VideoID    uuid.UUID `json:"video_id"`
	PlatformID uuid.UUID `json:"platform_id"`
	ExitCode   int       `json:"exit_code"`
}

type StreamCrashed struct {
	VideoID    uuid.UUID `json:"video_id"`
	PlatformID uuid.UUID `json:"platform_id"`
}

type ScheduledStarted struct {
	ScheduleID  uuid.UUID   `json:"schedule_id"`
	VideoName   string      `json:"video_name"`
	PlatformIDs []uuid.UUID `json:"platform_ids"`
}

type ScheduledError struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	Error      string    `json:"error"`
}

type ConflictResolved struct {
	ScheduleID     uuid.UUID `json:"schedule_id"`
	StoppedVideoID uuid.UUID `json:"stopped_video_id"`
	PlatformID     uuid.UUID `json:"platform_id"`
}

type LoopIteration struct {
	SessionID uuid.UUID `json:"session_id"`
	Iteration int       `json:"iteration"`
}

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a cancel func that must be
// called when the subscriber is done.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking. Events
// for full subscriber buffers are dropped.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
