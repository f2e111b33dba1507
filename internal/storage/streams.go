package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/models"
)

func (s *PostgresStore) CreateStreamRecord(ctx context.Context, rec *models.StreamRecord) error {
	rec.ID = uuid.New()
	rec.Status = models.StreamStatusStreaming
	err := s.pool.QueryRow(ctx,
		`INSERT INTO streams (id, video_id, platform_id, status, process_pid, loop_session_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING started_at`,
		rec.ID, rec.VideoID, rec.PlatformID, rec.Status, rec.ProcessPID, rec.LoopSessionID,
	).Scan(&rec.StartedAt)
	if err != nil {
		return fmt.Errorf("create stream record: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStreamStatus(ctx context.Context, id uuid.UUID, status models.StreamStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE streams SET status = $1, error_message = $2 WHERE id = $3`,
		status, errMsg, id)
	if err != nil {
		return fmt.Errorf("update stream status: %w", err)
	}
	return nil
}

// SetStreamPID records the current transcoder PID, which changes when the
// registry respawns a looped stream on a playlist wrap.
func (s *PostgresStore) SetStreamPID(ctx context.Context, id uuid.UUID, pid int) error {
	_, err := s.pool.Exec(ctx, `UPDATE streams SET process_pid = $1 WHERE id = $2`, pid, id)
	if err != nil {
		return fmt.Errorf("set stream pid: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetStreamLoopSession(ctx context.Context, id, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE streams SET loop_session_id = $1 WHERE id = $2`, sessionID, id)
	if err != nil {
		return fmt.Errorf("set stream loop session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListStreamHistory(ctx context.Context, limit int) ([]models.StreamHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.video_id, s.platform_id, s.status, s.process_pid, s.started_at,
		        s.error_message, s.loop_session_id, v.original_name, p.name, p.kind
		 FROM streams s
		 JOIN videos v ON s.video_id = v.id
		 JOIN platforms p ON s.platform_id = p.id
		 ORDER BY s.started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list stream history: %w", err)
	}
	defer rows.Close()

	var entries []models.StreamHistoryEntry
	for rows.Next() {
		var e models.StreamHistoryEntry
		if err := rows.Scan(&e.ID, &e.VideoID, &e.PlatformID, &e.Status, &e.ProcessPID,
			&e.StartedAt, &e.ErrorMessage, &e.LoopSessionID, &e.VideoName, &e.PlatformName, &e.PlatformKind); err != nil {
			return nil, fmt.Errorf("scan stream history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
