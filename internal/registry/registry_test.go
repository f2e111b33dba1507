package registry

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

	"github.com/your-org/streamhub/internal/config"
	"github.com/your-org/streamhub/internal/events"
	"github.com/your-org/streamhub/internal/ffmpeg"
	"github.com/your-org/streamhub/internal/loop"
	"github.com/your-org/streamhub/internal/models"
)

type fakeProc struct {
	pid  int
	done chan int

	mu    sync.Mutex
	alive bool
	terms int
}

func (p *fakeProc) PID() int          { return p.pid }
func (p *fakeProc) Done() <-chan int  { return p.done }
func (p *fakeProc) Alive() bool       { p.mu.Lock(); defer p.mu.Unlock(); return p.alive }
func (p *fakeProc) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terms++
	p.alive = false
	return nil
}

func (p *fakeProc) terminations() int { p.mu.Lock(); defer p.mu.Unlock(); return p.terms }

// exit simulates the child ending on its own.
func (p *fakeProc) exit(code int) {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
	p.done <- code
	close(p.done)
}

// vanish simulates a crash the exit channel never reports.
func (p *fakeProc) vanish() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

type fakeRunner struct {
	mu      sync.Mutex
	procs   []*fakeProc
	err     error
	nextPID int
}

func (r *fakeRunner) Start(args []string) (ffmpeg.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.nextPID++
	p := &fakeProc{pid: r.nextPID, done: make(chan int, 1), alive: true}
	r.procs = append(r.procs, p)
	return p, nil
}

func (r *fakeRunner) proc(i int) *fakeProc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[i]
}

func (r *fakeRunner) spawned() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// fakeStore implements both the registry and loop store interfaces.
type fakeStore struct {
	mu         sync.Mutex
	media      map[uuid.UUID]models.MediaItem
	platforms  map[uuid.UUID]models.Platform
	statuses   map[uuid.UUID]models.StreamStatus
	errMsgs    map[uuid.UUID]string
	iterations map[uuid.UUID]int
	createErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		media:      make(map[uuid.UUID]models.MediaItem),
		platforms:  make(map[uuid.UUID]models.Platform),
		statuses:   make(map[uuid.UUID]models.StreamStatus),
		errMsgs:    make(map[uuid.UUID]string),
		iterations: make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) GetMedia(_ context.Context, id uuid.UUID) (*models.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.media[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (f *fakeStore) GetPlatform(_ context.Context, id uuid.UUID) (*models.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.platforms[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateStreamRecord(_ context.Context, rec *models.StreamRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	rec.ID = uuid.New()
	rec.Status = models.StreamStatusStreaming
	rec.StartedAt = time.Now()
	f.statuses[rec.ID] = rec.Status
	return nil
}

func (f *fakeStore) UpdateStreamStatus(_ context.Context, id uuid.UUID, status models.StreamStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	f.errMsgs[id] = errMsg
	return nil
}

func (f *fakeStore) SetStreamPID(context.Context, uuid.UUID, int) error { return nil }

func (f *fakeStore) SetStreamLoopSession(context.Context, uuid.UUID, uuid.UUID) error { return nil }

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
	c.ID = uuid.New()
	return nil
}

func (f *fakeStore) GetLoopConfig(context.Context, uuid.UUID) (*models.LoopConfig, error) {
	return nil, nil
}

func (f *fakeStore) CreateLoopSession(_ context.Context, configID, streamID uuid.UUID) (*models.LoopSession, error) {
	return &models.LoopSession{ID: uuid.New(), ConfigID: configID, StreamID: streamID}, nil
}

func (f *fakeStore) UpdateLoopIteration(_ context.Context, sessionID uuid.UUID, iteration int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iterations[sessionID] = iteration
	return nil
}

func (f *fakeStore) EndLoopSession(context.Context, uuid.UUID) error { return nil }

func (f *fakeStore) ListActiveLoopSessions(context.Context) ([]models.LoopSession, error) {
	return nil, nil
}

func (f *fakeStore) status(id uuid.UUID) (models.StreamStatus, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id], f.errMsgs[id]
}

func (f *fakeStore) addVideo(t *testing.T, dir string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	path := filepath.Join(dir, id.String()+".mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	f.mu.Lock()
	f.media[id] = models.MediaItem{ID: id, Path: path, OriginalName: "clip.mp4"}
	f.mu.Unlock()
	return id
}

func (f *fakeStore) addPlatform() uuid.UUID {
	id := uuid.New()
	f.mu.Lock()
	f.platforms[id] = models.Platform{
		ID: id, Name: "yt", Kind: models.PlatformYouTube,
		RTMPURL: "rtmp://a.rtmp.youtube.com/live2", StreamKey: "key",
	}
	f.mu.Unlock()
	return id
}

func newTestRegistry(t *testing.T, db *fakeStore, runner *fakeRunner) *Registry {
	t.Helper()
	builder := ffmpeg.NewBuilder(t.TempDir(), config.EncoderConfig{
		VideoCodec: "libx264", Preset: "veryfast", MaxRate: "3000k", BufferSize: "6000k",
		PixelFormat: "yuv420p", KeyframeInterval: 50, AudioCodec: "aac",
		AudioBitrate: "160k", AudioSampleRate: "44100", OutputFormat: "flv",
	})
	return New(db, runner, builder, loop.NewManager(db), events.NewBus(), 10*time.Millisecond)
}

func TestStartAndExclusivity(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)
	ctx := context.Background()

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()

	results, err := reg.Start(ctx, videoID, []uuid.UUID{platformID}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.NotZero(t, results[0].PID)
	assert.Len(t, reg.ActiveStreams(), 1)

	// The same pair cannot start twice.
	results, err = reg.Start(ctx, videoID, []uuid.UUID{platformID}, nil)
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Equal(t, "already streaming", results[0].Error)
	assert.Equal(t, 1, runner.spawned())
}

func TestStartUnknownVideo(t *testing.T) {
	reg := newTestRegistry(t, newFakeStore(), &fakeRunner{})

	_, err := reg.Start(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartUnknownPlatform(t *testing.T) {
	db := newFakeStore()
	reg := newTestRegistry(t, db, &fakeRunner{})

	videoID := db.addVideo(t, t.TempDir())
	results, err := reg.Start(context.Background(), videoID, []uuid.UUID{uuid.New()}, nil)
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Equal(t, "platform not found", results[0].Error)
}

func TestStartPersistFailureRollsBack(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()
	db.createErr = assert.AnError

	results, err := reg.Start(context.Background(), videoID, []uuid.UUID{platformID}, nil)
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Empty(t, reg.ActiveStreams())
	assert.Equal(t, 1, runner.proc(0).terminations())
}

func TestStopIdempotent(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)
	ctx := context.Background()

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()
	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformID}, nil)
	require.NoError(t, err)
	recordID := reg.ActiveStreams()[0].RecordID

	assert.True(t, reg.Stop(ctx, videoID, platformID))
	assert.False(t, reg.Stop(ctx, videoID, platformID))
	assert.Empty(t, reg.ActiveStreams())
	assert.GreaterOrEqual(t, runner.proc(0).terminations(), 1)

	status, _ := db.status(recordID)
	assert.Equal(t, models.StreamStatusStopped, status)
}

func TestCleanExitCompletes(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)
	ctx := context.Background()

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()
	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformID}, nil)
	require.NoError(t, err)
	recordID := reg.ActiveStreams()[0].RecordID

	runner.proc(0).exit(0)

	require.Eventually(t, func() bool {
		return len(reg.ActiveStreams()) == 0
	}, time.Second, 5*time.Millisecond)

	status, errMsg := db.status(recordID)
	assert.Equal(t, models.StreamStatusCompleted, status)
	assert.Empty(t, errMsg)
}

func TestNonZeroExitRecordsError(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)
	ctx := context.Background()

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()
	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformID}, nil)
	require.NoError(t, err)
	recordID := reg.ActiveStreams()[0].RecordID

	runner.proc(0).exit(3)

	require.Eventually(t, func() bool {
		status, _ := db.status(recordID)
		return status == models.StreamStatusError
	}, time.Second, 5*time.Millisecond)

	_, errMsg := db.status(recordID)
	assert.Equal(t, "exit code: 3", errMsg)
}

func TestCrashDetectedByProbe(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	builder := ffmpeg.NewBuilder(t.TempDir(), config.EncoderConfig{OutputFormat: "flv"})
	bus := events.NewBus()
	reg := New(db, runner, builder, loop.NewManager(db), bus, 10*time.Millisecond)
	ctx := context.Background()

	evtCh, cancel := bus.Subscribe()
	defer cancel()

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()
	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformID}, nil)
	require.NoError(t, err)
	recordID := reg.ActiveStreams()[0].RecordID

	runner.proc(0).vanish()

	require.Eventually(t, func() bool {
		status, _ := db.status(recordID)
		return status == models.StreamStatusCrashed
	}, time.Second, 5*time.Millisecond)

	_, errMsg := db.status(recordID)
	assert.Equal(t, crashedMessage, errMsg)

	// Exactly one crashed event, even with the probe still ticking.
	time.Sleep(50 * time.Millisecond)
	crashes := 0
	for {
		select {
		case evt := <-evtCh:
			if evt.Type == events.TypeCrashed {
				crashes++
			}
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, crashes)
}

func TestDurationLoopRespawnsOnCleanExit(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)
	ctx := context.Background()

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()
	loopCfg := &models.LoopConfig{ID: uuid.New(), Type: models.LoopDuration, DurationHours: 4}

	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformID}, loopCfg)
	require.NoError(t, err)

	runner.proc(0).exit(0)

	require.Eventually(t, func() bool {
		return runner.spawned() == 2
	}, time.Second, 5*time.Millisecond)

	// Still active, now supervised on the new process.
	assert.Len(t, reg.ActiveStreams(), 1)
	assert.True(t, reg.Stop(ctx, videoID, platformID))
}

func TestCountLoopCompletesOnCleanExit(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)
	ctx := context.Background()

	videoID := db.addVideo(t, t.TempDir())
	platformID := db.addPlatform()
	loopCfg := &models.LoopConfig{ID: uuid.New(), Type: models.LoopCount, RepeatCount: 3}

	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformID}, loopCfg)
	require.NoError(t, err)
	recordID := reg.ActiveStreams()[0].RecordID

	// The repeats are baked into the manifest; a clean exit is final.
	runner.proc(0).exit(0)

	require.Eventually(t, func() bool {
		status, _ := db.status(recordID)
		return status == models.StreamStatusCompleted
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, runner.spawned())
	assert.Empty(t, reg.ActiveStreams())
}

func TestStopWhereByPlatform(t *testing.T) {
	db := newFakeStore()
	runner := &fakeRunner{}
	reg := newTestRegistry(t, db, runner)
	ctx := context.Background()

	dir := t.TempDir()
	videoID := db.addVideo(t, dir)
	platformA := db.addPlatform()
	platformB := db.addPlatform()

	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformA, platformB}, nil)
	require.NoError(t, err)
	require.Len(t, reg.ActiveStreams(), 2)

	stopped := reg.StopWhere(ctx, func(_, platformID uuid.UUID) bool {
		return platformID == platformA
	})
	require.Len(t, stopped, 1)
	assert.Equal(t, platformA, stopped[0].PlatformID)

	remaining := reg.ActiveStreams()
	require.Len(t, remaining, 1)
	assert.Equal(t, platformB, remaining[0].PlatformID)
}

func TestActiveOn(t *testing.T) {
	db := newFakeStore()
	reg := newTestRegistry(t, db, &fakeRunner{})
	ctx := context.Background()

	videoID := db.addVideo(t, t.TempDir())
	platformA := db.addPlatform()
	platformB := db.addPlatform()

	_, err := reg.Start(ctx, videoID, []uuid.UUID{platformA}, nil)
	require.NoError(t, err)

	assert.Len(t, reg.ActiveOn([]uuid.UUID{platformA, platformB}), 1)
	assert.Empty(t, reg.ActiveOn([]uuid.UUID{platformB}))
}
