package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/streamhub/internal/models"
)

func (s *PostgresStore) CreateLoopConfig(ctx context.Context, c *models.LoopConfig) error {
	c.ID = uuid.New()
	videoIDs, err := json.Marshal(c.VideoIDs)
	if err != nil {
		return fmt.Errorf("marshal video ids: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO loop_configurations (id, name, type, video_ids, duration_hours, repeat_count)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		c.ID, c.Name, c.Type, videoIDs, c.DurationHours, c.RepeatCount,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create loop config: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLoopConfig(ctx context.Context, id uuid.UUID) (*models.LoopConfig, error) {
	c := &models.LoopConfig{}
	var videoIDs []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, type, video_ids, duration_hours, repeat_count, created_at
		 FROM loop_configurations WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Type, &videoIDs, &c.DurationHours, &c.RepeatCount, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get loop config: %w", err)
	}
	if err := json.Unmarshal(videoIDs, &c.VideoIDs); err != nil {
		return nil, fmt.Errorf("unmarshal video ids: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) CreateLoopSession(ctx context.Context, configID, streamID uuid.UUID) (*models.LoopSession, error) {
	sess := &models.LoopSession{
		ID:       uuid.New(),
		ConfigID: configID,
		StreamID: streamID,
		Status:   models.LoopSessionActive,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO loop_sessions (id, config_id, stream_id) VALUES ($1, $2, $3) RETURNING started_at`,
		sess.ID, sess.ConfigID, sess.StreamID,
	).Scan(&sess.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create loop session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) UpdateLoopIteration(ctx context.Context, sessionID uuid.UUID, iteration int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE loop_sessions SET current_iteration = $1 WHERE id = $2`, iteration, sessionID)
	if err != nil {
		return fmt.Errorf("update loop iteration: %w", err)
	}
	return nil
}

func (s *PostgresStore) EndLoopSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE loop_sessions SET ended_at = now(), status = 'completed' WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("end loop session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveLoopSessions(ctx context.Context) ([]models.LoopSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, config_id, stream_id, started_at, ended_at, current_iteration, status
		 FROM loop_sessions WHERE status = 'active' ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active loop sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.LoopSession
	for rows.Next() {
		var sess models.LoopSession
		if err := rows.Scan(&sess.ID, &sess.ConfigID, &sess.StreamID, &sess.StartedAt,
			&sess.EndedAt, &sess.Iteration, &sess.Status); err != nil {
			return nil, fmt.Errorf("scan loop session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}
