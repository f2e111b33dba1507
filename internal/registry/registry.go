// Package registry is the in-memory source of truth for running transcoder
// processes. It enforces at-most-one-stream-per-(video, platform), detects
// crashes via a periodic liveness probe, and drives loop restarts.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/events"
	"github.com/your-org/streamhub/internal/ffmpeg"
	"github.com/your-org/streamhub/internal/loop"
	"github.com/your-org/streamhub/internal/models"
	"github.com/your-org/streamhub/internal/observability"
)

var (
	ErrNotFound = errors.New("not found")
)

// crashedMessage is the fixed diagnostic recorded when the liveness probe
// finds the process gone before its exit notification fired.
const crashedMessage = "process disappeared (health check failed)"

// Store is the subset of the persistent store the registry needs.
type Store interface {
	GetMedia(ctx context.Context, id uuid.UUID) (*models.MediaItem, error)
	GetPlatform(ctx context.Context, id uuid.UUID) (*models.Platform, error)
	CreateStreamRecord(ctx context.Context, rec *models.StreamRecord) error
	UpdateStreamStatus(ctx context.Context, id uuid.UUID, status models.StreamStatus, errMsg string) error
	SetStreamPID(ctx context.Context, id uuid.UUID, pid int) error
	SetStreamLoopSession(ctx context.Context, id, sessionID uuid.UUID) error
}

// Key identifies one stream slot. At most one process runs per key.
type Key struct {
	VideoID    uuid.UUID
	PlatformID uuid.UUID
}

// StartResult is the per-destination outcome of a Start call.
type StartResult struct {
	PlatformID uuid.UUID `json:"platform_id"`
	Success    bool      `json:"success"`
	PID        int       `json:"pid,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ActiveInfo describes one running stream.
type ActiveInfo struct {
	VideoID       uuid.UUID  `json:"video_id"`
	PlatformID    uuid.UUID  `json:"platform_id"`
	RecordID      uuid.UUID  `json:"record_id"`
	PID           int        `json:"pid"`
	LoopSessionID *uuid.UUID `json:"loop_session_id,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
}

type activeStream struct {
	key       Key
	recordID  uuid.UUID
	proc      ffmpeg.Process
	args      []string
	manifest  string
	loopCfg   *models.LoopConfig
	sessionID *uuid.UUID
	startedAt time.Time
	// restartable streams are respawned on a clean exit while the loop
	// policy says to continue. Count-bounded loops encode their repeats in
	// the manifest, so a clean exit is final for them.
	restartable bool
	// closed by Stop; tells the supervisor the slot was released already.
	stop chan struct{}
}

// Registry owns the active-stream table. All map access and every
// check-then-act sequence happens under one mutex; the schedule engine and
// HTTP handlers only call through the exported methods.
type Registry struct {
	db      Store
	runner  ffmpeg.Runner
	builder *ffmpeg.Builder
	loops   *loop.Manager
	bus     *events.Bus

	probeInterval time.Duration

	mu     sync.Mutex
	active map[Key]*activeStream
}

func New(db Store, runner ffmpeg.Runner, builder *ffmpeg.Builder, loops *loop.Manager, bus *events.Bus, probeInterval time.Duration) *Registry {
	if probeInterval <= 0 {
		probeInterval = 5 * time.Second
	}
	return &Registry{
		db:            db,
		runner:        runner,
		builder:       builder,
		loops:         loops,
		bus:           bus,
		probeInterval: probeInterval,
		active:        make(map[Key]*activeStream),
	}
}

// Start launches the video on every requested platform. Failures are
// per-destination: an already-streaming pair or a spawn failure on one
// platform never aborts the others.
func (r *Registry) Start(ctx context.Context, videoID uuid.UUID, platformIDs []uuid.UUID, loopCfg *models.LoopConfig) ([]StartResult, error) {
	video, err := r.db.GetMedia(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, fmt.Errorf("%w: video %s", ErrNotFound, videoID)
	}

	items := []models.MediaItem{*video}
	if loopCfg != nil && len(loopCfg.VideoIDs) > 0 {
		items, err = r.loops.ValidateFiles(ctx, loopCfg.VideoIDs)
		if err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(video.Path); err != nil {
		return nil, fmt.Errorf("%w: video file missing: %s", ErrNotFound, video.Path)
	}

	results := make([]StartResult, 0, len(platformIDs))
	for _, platformID := range platformIDs {
		results = append(results, r.startOne(ctx, videoID, platformID, items, loopCfg))
	}
	return results, nil
}

func (r *Registry) startOne(ctx context.Context, videoID, platformID uuid.UUID, items []models.MediaItem, loopCfg *models.LoopConfig) StartResult {
	key := Key{VideoID: videoID, PlatformID: platformID}

	// The lock is held across the whole check-then-act sequence so a
	// concurrent start (manual or scheduled) cannot slip in between the
	// exclusivity check and the registration.
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[key]; exists {
		return StartResult{PlatformID: platformID, Error: "already streaming"}
	}

	platform, err := r.db.GetPlatform(ctx, platformID)
	if err != nil {
		return StartResult{PlatformID: platformID, Error: err.Error()}
	}
	if platform == nil {
		return StartResult{PlatformID: platformID, Error: "platform not found"}
	}

	args, manifest, err := r.builder.BuildInvocation(items, loopCfg, platform.PublishURL())
	if err != nil {
		return StartResult{PlatformID: platformID, Error: err.Error()}
	}

	proc, err := r.runner.Start(args)
	if err != nil {
		r.builder.Cleanup(manifest)
		return StartResult{PlatformID: platformID, Error: fmt.Sprintf("spawn transcoder: %v", err)}
	}

	rec := &models.StreamRecord{
		VideoID:    videoID,
		PlatformID: platformID,
		ProcessPID: proc.PID(),
	}
	if err := r.db.CreateStreamRecord(ctx, rec); err != nil {
		// No record, no registration: kill the orphan and report failure.
		_ = proc.Terminate()
		r.builder.Cleanup(manifest)
		return StartResult{PlatformID: platformID, Error: fmt.Sprintf("persist stream record: %v", err)}
	}

	as := &activeStream{
		key:         key,
		recordID:    rec.ID,
		proc:        proc,
		args:        args,
		manifest:    manifest,
		loopCfg:     loopCfg,
		startedAt:   rec.StartedAt,
		restartable: loopCfg != nil && loopCfg.Type != models.LoopCount,
		stop:        make(chan struct{}),
	}

	if loopCfg != nil {
		sess, err := r.loops.StartSession(ctx, loopCfg, rec.ID)
		if err != nil {
			_ = proc.Terminate()
			r.builder.Cleanup(manifest)
			_ = r.db.UpdateStreamStatus(ctx, rec.ID, models.StreamStatusError, fmt.Sprintf("start loop session: %v", err))
			return StartResult{PlatformID: platformID, Error: fmt.Sprintf("start loop session: %v", err)}
		}
		as.sessionID = &sess.ID
		_ = r.db.SetStreamLoopSession(ctx, rec.ID, sess.ID)
	}

	r.active[key] = as
	go r.supervise(as)

	observability.ActiveStreams.Inc()
	slog.Info("stream started",
		"video_id", videoID, "platform_id", platformID, "pid", proc.PID(), "looped", loopCfg != nil)

	r.bus.Publish(events.Event{Type: events.TypeStarted, Data: events.StreamStarted{
		VideoID:    videoID,
		PlatformID: platformID,
		PID:        proc.PID(),
	}})

	return StartResult{PlatformID: platformID, Success: true, PID: proc.PID()}
}

// Stop gracefully terminates the stream for the pair. Returns false when no
// such stream is active; stopping twice is not an error.
func (r *Registry) Stop(ctx context.Context, videoID, platformID uuid.UUID) bool {
	key := Key{VideoID: videoID, PlatformID: platformID}

	r.mu.Lock()
	as, ok := r.active[key]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.active, key)
	close(as.stop)
	r.mu.Unlock()

	r.release(ctx, as, models.StreamStatusStopped, "")
	slog.Info("stream stopped", "video_id", videoID, "platform_id", platformID)
	return true
}

// StoppedStream identifies a stream released by StopWhere.
type StoppedStream struct {
	VideoID    uuid.UUID
	PlatformID uuid.UUID
	RecordID   uuid.UUID
}

// StopWhere force-stops every active stream matching the predicate. Used
// for cascade deletes and schedule conflict resolution.
func (r *Registry) StopWhere(ctx context.Context, pred func(videoID, platformID uuid.UUID) bool) []StoppedStream {
	r.mu.Lock()
	var matched []*activeStream
	for key, as := range r.active {
		if pred(key.VideoID, key.PlatformID) {
			matched = append(matched, as)
			delete(r.active, key)
			close(as.stop)
		}
	}
	r.mu.Unlock()

	stopped := make([]StoppedStream, 0, len(matched))
	for _, as := range matched {
		r.release(ctx, as, models.StreamStatusStopped, "")
		stopped = append(stopped, StoppedStream{
			VideoID:    as.key.VideoID,
			PlatformID: as.key.PlatformID,
			RecordID:   as.recordID,
		})
		slog.Info("stream force-stopped", "video_id", as.key.VideoID, "platform_id", as.key.PlatformID)
	}
	return stopped
}

// StopAll releases every active stream; called on shutdown.
func (r *Registry) StopAll(ctx context.Context) {
	r.StopWhere(ctx, func(uuid.UUID, uuid.UUID) bool { return true })
}

// ActiveStreams snapshots the running set.
func (r *Registry) ActiveStreams() []ActiveInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ActiveInfo, 0, len(r.active))
	for _, as := range r.active {
		infos = append(infos, ActiveInfo{
			VideoID:       as.key.VideoID,
			PlatformID:    as.key.PlatformID,
			RecordID:      as.recordID,
			PID:           as.proc.PID(),
			LoopSessionID: as.sessionID,
			StartedAt:     as.startedAt,
		})
	}
	return infos
}

// ActiveOn returns the active streams publishing to any of the given
// platforms, regardless of video. An RTMP endpoint carries one inbound
// publish at a time, so these are the schedule engine's conflicts.
func (r *Registry) ActiveOn(platformIDs []uuid.UUID) []ActiveInfo {
	targets := make(map[uuid.UUID]struct{}, len(platformIDs))
	for _, id := range platformIDs {
		targets[id] = struct{}{}
	}

	var infos []ActiveInfo
	for _, info := range r.ActiveStreams() {
		if _, ok := targets[info.PlatformID]; ok {
			infos = append(infos, info)
		}
	}
	return infos
}

// release cleans up a slot already removed from the active map: terminate
// the process, drop the manifest, close the loop session and persist the
// terminal status.
func (r *Registry) release(ctx context.Context, as *activeStream, status models.StreamStatus, errMsg string) {
	_ = as.proc.Terminate()
	r.builder.Cleanup(as.manifest)
	r.loops.EndSession(ctx, as.recordID)
	if err := r.db.UpdateStreamStatus(ctx, as.recordID, status, errMsg); err != nil {
		slog.Error("update stream status", "record_id", as.recordID, "status", status, "error", err)
	}
	observability.ActiveStreams.Dec()
}

// supervise waits on the process exit channel multiplexed with the liveness
// probe ticker. Exactly one terminal transition wins for a slot: Stop closes
// the stop channel, and the exit/crash paths re-check map ownership under
// the lock before acting.
func (r *Registry) supervise(as *activeStream) {
	ticker := time.NewTicker(r.probeInterval)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		proc := as.proc
		r.mu.Unlock()

		select {
		case <-as.stop:
			return
		case code := <-proc.Done():
			if r.handleExit(as, code) {
				return
			}
		case <-ticker.C:
			if !proc.Alive() {
				r.handleCrash(as)
				return
			}
			if as.loopCfg != nil && as.loopCfg.Type == models.LoopDuration && !r.loops.ShouldContinue(as.recordID) {
				r.expireLoop(as)
				return
			}
		}
	}
}

// handleExit processes the child's own exit notification. Returns true when
// supervision is finished, false when the stream was respawned for another
// loop iteration.
func (r *Registry) handleExit(as *activeStream, code int) bool {
	ctx := context.Background()

	r.mu.Lock()
	if r.active[as.key] != as {
		// Lost the race against Stop or the crash path.
		r.mu.Unlock()
		return true
	}

	if code == 0 && as.restartable && r.loops.ShouldContinue(as.recordID) {
		proc, err := r.runner.Start(as.args)
		if err == nil {
			as.proc = proc
			r.mu.Unlock()

			iteration, err := r.loops.RecordIteration(ctx, as.recordID)
			if err != nil {
				slog.Warn("record loop iteration", "record_id", as.recordID, "error", err)
			}
			_ = r.db.SetStreamPID(ctx, as.recordID, proc.PID())
			observability.LoopIterations.Inc()
			slog.Info("loop wrapped", "video_id", as.key.VideoID, "platform_id", as.key.PlatformID,
				"iteration", iteration, "pid", proc.PID())

			if as.sessionID != nil {
				r.bus.Publish(events.Event{Type: events.TypeLoopIteration, Data: events.LoopIteration{
					SessionID: *as.sessionID,
					Iteration: iteration,
				}})
			}
			return false
		}
		slog.Error("respawn looped stream", "video_id", as.key.VideoID, "error", err)
		// Fall through and close out the stream.
	}

	delete(r.active, as.key)
	r.mu.Unlock()

	status := models.StreamStatusCompleted
	errMsg := ""
	if code != 0 {
		status = models.StreamStatusError
		errMsg = fmt.Sprintf("exit code: %d", code)
	}

	r.builder.Cleanup(as.manifest)
	r.loops.EndSession(ctx, as.recordID)
	if err := r.db.UpdateStreamStatus(ctx, as.recordID, status, errMsg); err != nil {
		slog.Error("update stream status", "record_id", as.recordID, "error", err)
	}
	observability.ActiveStreams.Dec()
	slog.Info("stream ended", "video_id", as.key.VideoID, "platform_id", as.key.PlatformID, "exit_code", code)

	r.bus.Publish(events.Event{Type: events.TypeEnded, Data: events.StreamEnded{
		VideoID:    as.key.VideoID,
		PlatformID: as.key.PlatformID,
		ExitCode:   code,
	}})
	return true
}

// handleCrash is the probe-detected death path: the process vanished without
// its exit notification being observed first.
func (r *Registry) handleCrash(as *activeStream) {
	ctx := context.Background()

	r.mu.Lock()
	if r.active[as.key] != as {
		r.mu.Unlock()
		return
	}
	delete(r.active, as.key)
	r.mu.Unlock()

	r.builder.Cleanup(as.manifest)
	r.loops.EndSession(ctx, as.recordID)
	if err := r.db.UpdateStreamStatus(ctx, as.recordID, models.StreamStatusCrashed, crashedMessage); err != nil {
		slog.Error("update stream status", "record_id", as.recordID, "error", err)
	}
	observability.ActiveStreams.Dec()
	observability.StreamCrashes.Inc()
	slog.Warn("stream crashed", "video_id", as.key.VideoID, "platform_id", as.key.PlatformID)

	r.bus.Publish(events.Event{Type: events.TypeCrashed, Data: events.StreamCrashed{
		VideoID:    as.key.VideoID,
		PlatformID: as.key.PlatformID,
	}})
}

// expireLoop ends a duration-bounded loop whose time lapsed mid-play. The
// stream completed its policy, so the record closes as completed.
func (r *Registry) expireLoop(as *activeStream) {
	ctx := context.Background()

	r.mu.Lock()
	if r.active[as.key] != as {
		r.mu.Unlock()
		return
	}
	delete(r.active, as.key)
	r.mu.Unlock()

	r.release(ctx, as, models.StreamStatusCompleted, "")
	slog.Info("loop duration reached", "video_id", as.key.VideoID, "platform_id", as.key.PlatformID)

	r.bus.Publish(events.Event{Type: events.TypeEnded, Data: events.StreamEnded{
		VideoID:    as.key.VideoID,
		PlatformID: as.key.PlatformID,
		ExitCode:   0,
	}})
}
