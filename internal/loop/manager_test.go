package loop

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/streamhub/internal/models"
)

type fakeStore struct {
	mu         sync.Mutex
	media      map[uuid.UUID]models.MediaItem
	configs    map[uuid.UUID]models.LoopConfig
	iterations map[uuid.UUID]int
	ended      map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		media:      make(map[uuid.UUID]models.MediaItem),
		configs:    make(map[uuid.UUID]models.LoopConfig),
		iterations: make(map[uuid.UUID]int),
		ended:      make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) GetMediaByIDs(_ context.Context, ids []uuid.UUID) ([]models.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]models.MediaItem, 0, len(ids))
	for _, id := range ids {
		if m, ok := f.media[id]; ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func (f *fakeStore) CreateLoopConfig(_ context.Context, c *models.LoopConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	f.configs[c.ID] = *c
	return nil
}

func (f *fakeStore) GetLoopConfig(_ context.Context, id uuid.UUID) (*models.LoopConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.configs[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateLoopSession(_ context.Context, configID, streamID uuid.UUID) (*models.LoopSession, error) {
	return &models.LoopSession{
		ID:       uuid.New(),
		ConfigID: configID,
		StreamID: streamID,
		Status:   models.LoopSessionActive,
	}, nil
}

func (f *fakeStore) UpdateLoopIteration(_ context.Context, sessionID uuid.UUID, iteration int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iterations[sessionID] = iteration
	return nil
}

func (f *fakeStore) EndLoopSession(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended[sessionID] = true
	return nil
}

func (f *fakeStore) ListActiveLoopSessions(context.Context) ([]models.LoopSession, error) {
	return nil, nil
}

func (f *fakeStore) addMediaFile(t *testing.T, dir string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	path := filepath.Join(dir, id.String()+".mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	f.mu.Lock()
	f.media[id] = models.MediaItem{ID: id, Path: path}
	f.mu.Unlock()
	return id
}

func TestCreateConfigValidation(t *testing.T) {
	db := newFakeStore()
	m := NewManager(db)
	ctx := context.Background()

	err := m.CreateConfig(ctx, &models.LoopConfig{Type: "weird"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = m.CreateConfig(ctx, &models.LoopConfig{Type: models.LoopDuration})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = m.CreateConfig(ctx, &models.LoopConfig{Type: models.LoopCount, RepeatCount: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = m.CreateConfig(ctx, &models.LoopConfig{Type: models.LoopInfinite})
	assert.NoError(t, err)
}

func TestCreateConfigRejectsMissingFile(t *testing.T) {
	db := newFakeStore()
	m := NewManager(db)
	ctx := context.Background()

	good := db.addMediaFile(t, t.TempDir())

	missing := uuid.New()
	db.mu.Lock()
	db.media[missing] = models.MediaItem{ID: missing, Path: "/nowhere/gone.mp4"}
	db.mu.Unlock()

	err := m.CreateConfig(ctx, &models.LoopConfig{
		Type:     models.LoopInfinite,
		VideoIDs: []uuid.UUID{good, missing},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateFilesUnknownVideo(t *testing.T) {
	db := newFakeStore()
	m := NewManager(db)

	_, err := m.ValidateFiles(context.Background(), []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShouldContinueCountBound(t *testing.T) {
	db := newFakeStore()
	m := NewManager(db)
	ctx := context.Background()

	cfg := &models.LoopConfig{ID: uuid.New(), Type: models.LoopCount, RepeatCount: 2}
	streamID := uuid.New()
	_, err := m.StartSession(ctx, cfg, streamID)
	require.NoError(t, err)

	// iteration 0 and 1 are below the bound of 2
	assert.True(t, m.ShouldContinue(streamID))

	_, err = m.RecordIteration(ctx, streamID)
	require.NoError(t, err)
	assert.True(t, m.ShouldContinue(streamID))

	_, err = m.RecordIteration(ctx, streamID)
	require.NoError(t, err)
	assert.False(t, m.ShouldContinue(streamID))
}

func TestShouldContinueDurationBound(t *testing.T) {
	db := newFakeStore()
	m := NewManager(db)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	cfg := &models.LoopConfig{ID: uuid.New(), Type: models.LoopDuration, DurationHours: 2}
	streamID := uuid.New()
	_, err := m.StartSession(ctx, cfg, streamID)
	require.NoError(t, err)

	now = now.Add(119 * time.Minute)
	assert.True(t, m.ShouldContinue(streamID))

	now = now.Add(2 * time.Minute)
	assert.False(t, m.ShouldContinue(streamID))
}

func TestShouldContinueFailsClosed(t *testing.T) {
	m := NewManager(newFakeStore())
	assert.False(t, m.ShouldContinue(uuid.New()))
}

func TestEndSessionIdempotent(t *testing.T) {
	db := newFakeStore()
	m := NewManager(db)
	ctx := context.Background()

	cfg := &models.LoopConfig{ID: uuid.New(), Type: models.LoopInfinite}
	streamID := uuid.New()
	sess, err := m.StartSession(ctx, cfg, streamID)
	require.NoError(t, err)

	m.EndSession(ctx, streamID)
	m.EndSession(ctx, streamID)

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.True(t, db.ended[sess.ID])
	assert.False(t, m.ShouldContinue(streamID))
}

func TestRecordIterationPersists(t *testing.T) {
	db := newFakeStore()
	m := NewManager(db)
	ctx := context.Background()

	cfg := &models.LoopConfig{ID: uuid.New(), Type: models.LoopInfinite}
	streamID := uuid.New()
	sess, err := m.StartSession(ctx, cfg, streamID)
	require.NoError(t, err)

	n, err := m.RecordIteration(ctx, streamID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Equal(t, 1, db.iterations[sess.ID])
}
