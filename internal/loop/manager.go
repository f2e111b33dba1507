// Package loop tracks loop policies and per-session iteration accounting.
// It answers "should this loop continue"; acting on the answer (stopping or
// respawning the transcoder) is the registry's job.
package loop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the subset of the persistent store the manager needs.
type Store interface {
	GetMediaByIDs(ctx context.Context, ids []uuid.UUID) ([]models.MediaItem, error)
	CreateLoopConfig(ctx context.Context, c *models.LoopConfig) error
	GetLoopConfig(ctx context.Context, id uuid.UUID) (*models.LoopConfig, error)
	CreateLoopSession(ctx context.Context, configID, streamID uuid.UUID) (*models.LoopSession, error)
	UpdateLoopIteration(ctx context.Context, sessionID uuid.UUID, iteration int) error
	EndLoopSession(ctx context.Context, sessionID uuid.UUID) error
	ListActiveLoopSessions(ctx context.Context) ([]models.LoopSession, error)
}

type session struct {
	id        uuid.UUID
	config    models.LoopConfig
	startedAt time.Time
	iteration int
}

// Manager owns loop configs and the in-memory state of active sessions,
// keyed by the owning stream record ID.
type Manager struct {
	db  Store
	now func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func NewManager(db Store) *Manager {
	return &Manager{
		db:       db,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*session),
	}
}

// CreateConfig validates and persists a loop policy. Every referenced media
// file must exist on disk; a missing file fails the whole call.
func (m *Manager) CreateConfig(ctx context.Context, cfg *models.LoopConfig) error {
	switch cfg.Type {
	case models.LoopInfinite:
	case models.LoopDuration:
		if cfg.DurationHours <= 0 {
			return fmt.Errorf("%w: duration_hours must be positive", ErrInvalidInput)
		}
	case models.LoopCount:
		if cfg.RepeatCount <= 0 {
			return fmt.Errorf("%w: repeat_count must be positive", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown loop type %q", ErrInvalidInput, cfg.Type)
	}
	// An empty playlist is allowed: the triggering video is used at start.
	if len(cfg.VideoIDs) > 0 {
		if _, err := m.ValidateFiles(ctx, cfg.VideoIDs); err != nil {
			return err
		}
	}

	return m.db.CreateLoopConfig(ctx, cfg)
}

// ValidateFiles resolves the playlist items and verifies each file is
// accessible, in playlist order.
func (m *Manager) ValidateFiles(ctx context.Context, videoIDs []uuid.UUID) ([]models.MediaItem, error) {
	items, err := m.db.GetMediaByIDs(ctx, videoIDs)
	if err != nil {
		return nil, err
	}
	if len(items) != len(videoIDs) {
		return nil, fmt.Errorf("%w: unknown video in playlist", ErrNotFound)
	}
	for _, item := range items {
		if _, err := os.Stat(item.Path); err != nil {
			return nil, fmt.Errorf("%w: video file missing: %s", ErrNotFound, item.Path)
		}
	}
	return items, nil
}

// GetConfig loads a stored policy.
func (m *Manager) GetConfig(ctx context.Context, id uuid.UUID) (*models.LoopConfig, error) {
	cfg, err := m.db.GetLoopConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: loop config %s", ErrNotFound, id)
	}
	return cfg, nil
}

// StartSession opens a session binding the config to a stream record.
func (m *Manager) StartSession(ctx context.Context, cfg *models.LoopConfig, streamID uuid.UUID) (*models.LoopSession, error) {
	sess, err := m.db.CreateLoopSession(ctx, cfg.ID, streamID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[streamID] = &session{
		id:        sess.ID,
		config:    *cfg,
		startedAt: m.now(),
	}
	m.mu.Unlock()

	return sess, nil
}

// ShouldContinue reports whether the loop owning streamID may run another
// iteration. No session or config means no: fail closed.
func (m *Manager) ShouldContinue(streamID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[streamID]
	if !ok {
		return false
	}

	switch s.config.Type {
	case models.LoopInfinite:
		return true
	case models.LoopCount:
		return s.iteration < s.config.RepeatCount
	case models.LoopDuration:
		return m.now().Sub(s.startedAt) < time.Duration(s.config.DurationHours)*time.Hour
	}
	return false
}

// RecordIteration counts one playlist wrap and returns the new iteration.
func (m *Manager) RecordIteration(ctx context.Context, streamID uuid.UUID) (int, error) {
	m.mu.Lock()
	s, ok := m.sessions[streamID]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: no active loop session for stream %s", ErrNotFound, streamID)
	}
	s.iteration++
	iteration := s.iteration
	sessionID := s.id
	m.mu.Unlock()

	if err := m.db.UpdateLoopIteration(ctx, sessionID, iteration); err != nil {
		return iteration, err
	}
	return iteration, nil
}

// SessionID returns the session ID for a stream, if one is active.
func (m *Manager) SessionID(streamID uuid.UUID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[streamID]; ok {
		return s.id, true
	}
	return uuid.UUID{}, false
}

// EndSession closes the session for a stream. No-op when none is active.
func (m *Manager) EndSession(ctx context.Context, streamID uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[streamID]
	if ok {
		delete(m.sessions, streamID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.db.EndLoopSession(ctx, s.id); err != nil {
		// The in-memory session is gone either way; the row stays active
		// until the next boot reconciliation.
		_ = err
	}
}

// ActiveSessions lists persisted sessions still marked active.
func (m *Manager) ActiveSessions(ctx context.Context) ([]models.LoopSession, error) {
	return m.db.ListActiveLoopSessions(ctx)
}
