// Package scheduler evaluates weekly stream schedules once per minute and
// starts them through the stream registry, force-stopping whatever occupies
// the target platforms first.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/your-org/streamhub/internal/events"
	"github.com/your-org/streamhub/internal/models"
	"github.com/your-org/streamhub/internal/observability"
	"github.com/your-org/streamhub/internal/registry"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// debounce prevents a schedule from firing twice for the same minute when
// the tick runs more than once or restarts mid-minute.
const debounce = 50 * time.Minute

var timeOfDayRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// StreamController is the command surface the engine needs from the stream
// registry. The registry stays the sole owner of the active-stream table.
type StreamController interface {
	Start(ctx context.Context, videoID uuid.UUID, platformIDs []uuid.UUID, loopCfg *models.LoopConfig) ([]registry.StartResult, error)
	Stop(ctx context.Context, videoID, platformID uuid.UUID) bool
	ActiveOn(platformIDs []uuid.UUID) []registry.ActiveInfo
}

// Store is the subset of the persistent store the engine needs.
type Store interface {
	GetMedia(ctx context.Context, id uuid.UUID) (*models.MediaItem, error)
	GetLoopConfig(ctx context.Context, id uuid.UUID) (*models.LoopConfig, error)
	CreateSchedule(ctx context.Context, sc *models.Schedule) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	ListSchedules(ctx context.Context, activeOnly bool) ([]models.Schedule, error)
	UpdateSchedule(ctx context.Context, sc *models.Schedule) error
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
	SetScheduleRuns(ctx context.Context, id uuid.UUID, lastRun, nextRun *time.Time) error
	AppendScheduleLog(ctx context.Context, scheduleID uuid.UUID, action, details string) error
	ListScheduleLogs(ctx context.Context, scheduleID uuid.UUID, limit int) ([]models.ScheduleLog, error)
}

// Engine owns schedule CRUD, the audit log and the minute-tick evaluator.
type Engine struct {
	db      Store
	streams StreamController
	bus     *events.Bus
	now     func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewEngine(db Store, streams StreamController, bus *events.Bus) *Engine {
	return &Engine{
		db:      db,
		streams: streams,
		bus:     bus,
		now:     time.Now,
	}
}

// Start registers the minute tick and begins evaluating.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New()
	if _, err := c.AddFunc("* * * * *", func() {
		e.EvaluateTick(ctx, e.now())
	}); err != nil {
		return fmt.Errorf("register schedule tick: %w", err)
	}
	c.Start()
	e.cron = c

	slog.Info("schedule engine started")
	return nil
}

// Stop halts the evaluator. Running ticks finish on their own.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		e.cron.Stop()
		e.cron = nil
		slog.Info("schedule engine stopped")
	}
}

// Create validates and persists a schedule, computing its first next-run.
func (e *Engine) Create(ctx context.Context, sc *models.Schedule) error {
	if err := validateSpec(sc); err != nil {
		return err
	}
	if video, err := e.db.GetMedia(ctx, sc.VideoID); err != nil {
		return err
	} else if video == nil {
		return fmt.Errorf("%w: video %s", ErrNotFound, sc.VideoID)
	}

	next := e.nextRun(*sc, e.now())
	sc.NextRun = next

	if err := e.db.CreateSchedule(ctx, sc); err != nil {
		return err
	}
	if err := e.db.AppendScheduleLog(ctx, sc.ID, "created", fmt.Sprintf("time %s, days %v", sc.TimeOfDay, sc.Days)); err != nil {
		slog.Warn("append schedule log", "schedule_id", sc.ID, "error", err)
	}
	return nil
}

// Update edits a schedule and recomputes its next-run.
func (e *Engine) Update(ctx context.Context, id uuid.UUID, platformIDs []uuid.UUID, days []int, timeOfDay string, active bool, loopConfigID *uuid.UUID) (*models.Schedule, error) {
	sc, err := e.db.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, fmt.Errorf("%w: schedule %s", ErrNotFound, id)
	}

	sc.PlatformIDs = platformIDs
	sc.Days = days
	sc.TimeOfDay = timeOfDay
	sc.Active = active
	sc.LoopConfigID = loopConfigID
	if err := validateSpec(sc); err != nil {
		return nil, err
	}
	sc.NextRun = e.nextRun(*sc, e.now())

	if err := e.db.UpdateSchedule(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Delete removes a schedule and its audit log.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	sc, err := e.db.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if sc == nil {
		return fmt.Errorf("%w: schedule %s", ErrNotFound, id)
	}
	return e.db.DeleteSchedule(ctx, id)
}

// Logs returns the audit trail for one schedule.
func (e *Engine) Logs(ctx context.Context, id uuid.UUID, limit int) ([]models.ScheduleLog, error) {
	return e.db.ListScheduleLogs(ctx, id, limit)
}

// EvaluateTick fires every active schedule due at the given instant. A
// failing schedule is logged and skipped; it never blocks the rest of the
// tick.
func (e *Engine) EvaluateTick(ctx context.Context, now time.Time) {
	schedules, err := e.db.ListSchedules(ctx, true)
	if err != nil {
		slog.Error("list schedules", "error", err)
		return
	}

	currentMinute := now.Format("15:04")
	for i := range schedules {
		sc := schedules[i]
		if !sc.HasDay(now.Weekday()) || sc.TimeOfDay != currentMinute || !e.shouldRunNow(sc, now) {
			continue
		}
		e.execute(ctx, sc, now)
	}
}

// shouldRunNow is the duplicate-firing guard: run when never run before, or
// when the last run is comfortably outside the current minute window.
func (e *Engine) shouldRunNow(sc models.Schedule, now time.Time) bool {
	if sc.LastRun == nil {
		return true
	}
	return now.Sub(*sc.LastRun) > debounce
}

func (e *Engine) execute(ctx context.Context, sc models.Schedule, now time.Time) {
	if err := e.run(ctx, sc, now); err != nil {
		observability.ScheduleRuns.WithLabelValues("error").Inc()
		slog.Error("scheduled stream failed", "schedule_id", sc.ID, "error", err)

		if logErr := e.db.AppendScheduleLog(ctx, sc.ID, "error", err.Error()); logErr != nil {
			slog.Warn("append schedule log", "schedule_id", sc.ID, "error", logErr)
		}
		e.bus.Publish(events.Event{Type: events.TypeScheduledError, Data: events.ScheduledError{
			ScheduleID: sc.ID,
			Error:      err.Error(),
		}})
	}
}

func (e *Engine) run(ctx context.Context, sc models.Schedule, now time.Time) error {
	video, err := e.db.GetMedia(ctx, sc.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("%w: video %s", ErrNotFound, sc.VideoID)
	}

	var loopCfg *models.LoopConfig
	if sc.LoopConfigID != nil {
		loopCfg, err = e.db.GetLoopConfig(ctx, *sc.LoopConfigID)
		if err != nil {
			return err
		}
		if loopCfg == nil {
			return fmt.Errorf("%w: loop config %s", ErrNotFound, *sc.LoopConfigID)
		}
	}

	// A platform carries one inbound publish at a time: whatever currently
	// occupies the targets is stopped before the scheduled stream starts.
	for _, conflict := range e.streams.ActiveOn(sc.PlatformIDs) {
		if !e.streams.Stop(ctx, conflict.VideoID, conflict.PlatformID) {
			continue
		}
		observability.ConflictsResolved.Inc()
		slog.Info("schedule conflict resolved",
			"schedule_id", sc.ID, "stopped_video_id", conflict.VideoID, "platform_id", conflict.PlatformID)

		detail := fmt.Sprintf("stopped video %s on platform %s", conflict.VideoID, conflict.PlatformID)
		if err := e.db.AppendScheduleLog(ctx, sc.ID, "conflict_resolved", detail); err != nil {
			slog.Warn("append schedule log", "schedule_id", sc.ID, "error", err)
		}
		e.bus.Publish(events.Event{Type: events.TypeConflictResolved, Data: events.ConflictResolved{
			ScheduleID:     sc.ID,
			StoppedVideoID: conflict.VideoID,
			PlatformID:     conflict.PlatformID,
		}})
	}

	results, err := e.streams.Start(ctx, sc.VideoID, sc.PlatformIDs, loopCfg)
	if err != nil {
		return err
	}
	started := 0
	for _, res := range results {
		if res.Success {
			started++
		} else {
			slog.Warn("scheduled start partial failure",
				"schedule_id", sc.ID, "platform_id", res.PlatformID, "error", res.Error)
		}
	}
	if started == 0 {
		return fmt.Errorf("no platform accepted the stream")
	}

	lastRun := now
	next := e.nextRun(sc, now)
	if err := e.db.SetScheduleRuns(ctx, sc.ID, &lastRun, next); err != nil {
		slog.Error("record schedule run", "schedule_id", sc.ID, "error", err)
	}

	observability.ScheduleRuns.WithLabelValues("started").Inc()
	observability.StreamsStarted.WithLabelValues("scheduled").Add(float64(started))

	detail := fmt.Sprintf("stream started for video: %s", video.OriginalName)
	if err := e.db.AppendScheduleLog(ctx, sc.ID, "started", detail); err != nil {
		slog.Warn("append schedule log", "schedule_id", sc.ID, "error", err)
	}
	e.bus.Publish(events.Event{Type: events.TypeScheduledStarted, Data: events.ScheduledStarted{
		ScheduleID:  sc.ID,
		VideoName:   video.OriginalName,
		PlatformIDs: sc.PlatformIDs,
	}})
	return nil
}

// nextRun finds the nearest future occurrence of the schedule: today's slot
// if the time is still ahead, otherwise the next matching weekday.
func (e *Engine) nextRun(sc models.Schedule, now time.Time) *time.Time {
	hour, minute, ok := parseTimeOfDay(sc.TimeOfDay)
	if !ok || len(sc.Days) == 0 {
		return nil
	}

	for i := 0; i <= 7; i++ {
		day := now.AddDate(0, 0, i)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
		if sc.HasDay(candidate.Weekday()) && candidate.After(now) {
			return &candidate
		}
	}
	return nil
}

func parseTimeOfDay(s string) (hour, minute int, ok bool) {
	if !timeOfDayRe.MatchString(s) {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	return hour, minute, true
}

func validateSpec(sc *models.Schedule) error {
	if !timeOfDayRe.MatchString(sc.TimeOfDay) {
		return fmt.Errorf("%w: time_of_day must be HH:MM", ErrInvalidInput)
	}
	if len(sc.Days) == 0 {
		return fmt.Errorf("%w: at least one weekday required", ErrInvalidInput)
	}
	for _, d := range sc.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidInput, d)
		}
	}
	if len(sc.PlatformIDs) == 0 {
		return fmt.Errorf("%w: at least one platform required", ErrInvalidInput)
	}
	return nil
}
