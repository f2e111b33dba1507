package models

import (
	"time"

	"github.com/google/uuid"
)

type MediaSource string

const (
	MediaSourceUpload MediaSource = "upload"
	MediaSourceRemote MediaSource = "remote"
)

// MediaItem is an uploaded or imported video file. Immutable once created;
// deletion force-stops any stream that references it first.
type MediaItem struct {
	ID           uuid.UUID   `json:"id"`
	FileName     string      `json:"filename"`
	OriginalName string      `json:"original_name"`
	Path         string      `json:"path"`
	SizeBytes    int64       `json:"size_bytes"`
	Source       MediaSource `json:"source"`
	ArchiveKey   string      `json:"archive_key,omitempty"`
	UploadedAt   time.Time   `json:"uploaded_at"`
}
