package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/streamhub/internal/config"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables on first boot.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			original_name TEXT NOT NULL,
			path TEXT NOT NULL,
			size_bytes BIGINT NOT NULL DEFAULT 0,
			source TEXT NOT NULL DEFAULT 'upload',
			archive_key TEXT NOT NULL DEFAULT '',
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS platforms (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			rtmp_url TEXT NOT NULL,
			stream_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS streams (
			id UUID PRIMARY KEY,
			video_id UUID NOT NULL,
			platform_id UUID NOT NULL,
			status TEXT NOT NULL,
			process_pid INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			error_message TEXT NOT NULL DEFAULT '',
			loop_session_id UUID
		)`,
		`CREATE TABLE IF NOT EXISTS loop_configurations (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			video_ids JSONB NOT NULL,
			duration_hours INTEGER NOT NULL DEFAULT 0,
			repeat_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS loop_sessions (
			id UUID PRIMARY KEY,
			config_id UUID NOT NULL REFERENCES loop_configurations(id),
			stream_id UUID NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ,
			current_iteration INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_streams (
			id UUID PRIMARY KEY,
			video_id UUID NOT NULL,
			platform_ids JSONB NOT NULL,
			schedule_days JSONB NOT NULL,
			schedule_time TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			loop_config_id UUID,
			last_run TIMESTAMPTZ,
			next_run TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS schedule_logs (
			id UUID PRIMARY KEY,
			scheduled_stream_id UUID NOT NULL,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
