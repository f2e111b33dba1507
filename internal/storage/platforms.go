package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/streamhub/internal/models"
)

func (s *PostgresStore) CreatePlatform(ctx context.Context, p *models.Platform) error {
	p.ID = uuid.New()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO platforms (id, name, kind, rtmp_url, stream_key)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		p.ID, p.Name, p.Kind, p.RTMPURL, p.StreamKey,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create platform: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPlatform(ctx context.Context, id uuid.UUID) (*models.Platform, error) {
	p := &models.Platform{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, kind, rtmp_url, stream_key, created_at FROM platforms WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Kind, &p.RTMPURL, &p.StreamKey, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get platform: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPlatforms(ctx context.Context) ([]models.Platform, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, kind, rtmp_url, stream_key, created_at FROM platforms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	defer rows.Close()

	var platforms []models.Platform
	for rows.Next() {
		var p models.Platform
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.RTMPURL, &p.StreamKey, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func (s *PostgresStore) UpdatePlatform(ctx context.Context, id uuid.UUID, name string, kind models.PlatformKind, rtmpURL, streamKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE platforms SET name = $1, kind = $2, rtmp_url = $3, stream_key = $4 WHERE id = $5`,
		name, kind, rtmpURL, streamKey, id)
	if err != nil {
		return fmt.Errorf("update platform: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("platform not found")
	}
	return nil
}

func (s *PostgresStore) DeletePlatform(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM streams WHERE platform_id = $1`, id); err != nil {
		return fmt.Errorf("delete platform streams: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM platforms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete platform: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("platform not found")
	}
	return nil
}
