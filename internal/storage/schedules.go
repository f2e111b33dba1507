package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/streamhub/internal/models"
)

func (s *PostgresStore) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	sc.ID = uuid.New()
	platformIDs, err := json.Marshal(sc.PlatformIDs)
	if err != nil {
		return fmt.Errorf("marshal platform ids: %w", err)
	}
	days, err := json.Marshal(sc.Days)
	if err != nil {
		return fmt.Errorf("marshal days: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO scheduled_streams (id, video_id, platform_ids, schedule_days, schedule_time, is_active, loop_config_id, next_run)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		sc.ID, sc.VideoID, platformIDs, days, sc.TimeOfDay, sc.Active, sc.LoopConfigID, sc.NextRun,
	).Scan(&sc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func scanSchedule(row pgx.Row) (*models.Schedule, error) {
	sc := &models.Schedule{}
	var platformIDs, days []byte
	err := row.Scan(&sc.ID, &sc.VideoID, &platformIDs, &days, &sc.TimeOfDay,
		&sc.Active, &sc.LoopConfigID, &sc.LastRun, &sc.NextRun, &sc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(platformIDs, &sc.PlatformIDs); err != nil {
		return nil, fmt.Errorf("unmarshal platform ids: %w", err)
	}
	if err := json.Unmarshal(days, &sc.Days); err != nil {
		return nil, fmt.Errorf("unmarshal days: %w", err)
	}
	return sc, nil
}

const scheduleColumns = `id, video_id, platform_ids, schedule_days, schedule_time,
	is_active, loop_config_id, last_run, next_run, created_at`

func (s *PostgresStore) GetSchedule(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	sc, err := scanSchedule(s.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_streams WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context, activeOnly bool) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_streams`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, nil
}

func (s *PostgresStore) UpdateSchedule(ctx context.Context, sc *models.Schedule) error {
	platformIDs, err := json.Marshal(sc.PlatformIDs)
	if err != nil {
		return fmt.Errorf("marshal platform ids: %w", err)
	}
	days, err := json.Marshal(sc.Days)
	if err != nil {
		return fmt.Errorf("marshal days: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE scheduled_streams
		 SET platform_ids = $1, schedule_days = $2, schedule_time = $3, is_active = $4, loop_config_id = $5, next_run = $6
		 WHERE id = $7`,
		platformIDs, days, sc.TimeOfDay, sc.Active, sc.LoopConfigID, sc.NextRun, sc.ID)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule not found")
	}
	return nil
}

func (s *PostgresStore) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM schedule_logs WHERE scheduled_stream_id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule logs: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM scheduled_streams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule not found")
	}
	return nil
}

func (s *PostgresStore) SetScheduleRuns(ctx context.Context, id uuid.UUID, lastRun *time.Time, nextRun *time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scheduled_streams SET last_run = COALESCE($1, last_run), next_run = $2 WHERE id = $3`,
		lastRun, nextRun, id)
	if err != nil {
		return fmt.Errorf("set schedule runs: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendScheduleLog(ctx context.Context, scheduleID uuid.UUID, action, details string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schedule_logs (id, scheduled_stream_id, action, details) VALUES ($1, $2, $3, $4)`,
		uuid.New(), scheduleID, action, details)
	if err != nil {
		return fmt.Errorf("append schedule log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListScheduleLogs(ctx context.Context, scheduleID uuid.UUID, limit int) ([]models.ScheduleLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, scheduled_stream_id, action, details, created_at
		 FROM schedule_logs WHERE scheduled_stream_id = $1
		 ORDER BY created_at DESC LIMIT $2`, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list schedule logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ScheduleLog
	for rows.Next() {
		var l models.ScheduleLog
		if err := rows.Scan(&l.ID, &l.ScheduleID, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
