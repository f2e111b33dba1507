package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/streamhub/internal/models"
)

func (s *PostgresStore) CreateMedia(ctx context.Context, m *models.MediaItem) error {
	m.ID = uuid.New()
	if m.Source == "" {
		m.Source = models.MediaSourceUpload
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO videos (id, filename, original_name, path, size_bytes, source, archive_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING uploaded_at`,
		m.ID, m.FileName, m.OriginalName, m.Path, m.SizeBytes, m.Source, m.ArchiveKey,
	).Scan(&m.UploadedAt)
	if err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMedia(ctx context.Context, id uuid.UUID) (*models.MediaItem, error) {
	m := &models.MediaItem{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, original_name, path, size_bytes, source, archive_key, uploaded_at
		 FROM videos WHERE id = $1`, id,
	).Scan(&m.ID, &m.FileName, &m.OriginalName, &m.Path, &m.SizeBytes, &m.Source, &m.ArchiveKey, &m.UploadedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMedia(ctx context.Context) ([]models.MediaItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, original_name, path, size_bytes, source, archive_key, uploaded_at
		 FROM videos ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		var m models.MediaItem
		if err := rows.Scan(&m.ID, &m.FileName, &m.OriginalName, &m.Path, &m.SizeBytes, &m.Source, &m.ArchiveKey, &m.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	return items, nil
}

// GetMediaByIDs returns the items in the order the IDs were given, which is
// the playlist order for loops.
func (s *PostgresStore) GetMediaByIDs(ctx context.Context, ids []uuid.UUID) ([]models.MediaItem, error) {
	byID := make(map[uuid.UUID]models.MediaItem, len(ids))
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, original_name, path, size_bytes, source, archive_key, uploaded_at
		 FROM videos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get media by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.MediaItem
		if err := rows.Scan(&m.ID, &m.FileName, &m.OriginalName, &m.Path, &m.SizeBytes, &m.Source, &m.ArchiveKey, &m.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		byID[m.ID] = m
	}

	items := make([]models.MediaItem, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func (s *PostgresStore) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM streams WHERE video_id = $1`, id); err != nil {
		return fmt.Errorf("delete media streams: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("media not found")
	}
	return nil
}
