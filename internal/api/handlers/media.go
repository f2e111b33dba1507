package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/config"
	"github.com/your-org/streamhub/internal/media"
	"github.com/your-org/streamhub/internal/models"
	"github.com/your-org/streamhub/internal/registry"
	"github.com/your-org/streamhub/internal/storage"
	"github.com/your-org/streamhub/pkg/dto"
)

type MediaHandler struct {
	db       *storage.PostgresStore
	registry *registry.Registry
	fetcher  *media.Fetcher
	archive  *storage.ArchiveStore // nil when archiving is disabled
	cfg      config.MediaConfig
}

func NewMediaHandler(db *storage.PostgresStore, reg *registry.Registry, fetcher *media.Fetcher, archive *storage.ArchiveStore, cfg config.MediaConfig) *MediaHandler {
	return &MediaHandler{db: db, registry: reg, fetcher: fetcher, archive: archive, cfg: cfg}
}

func (h *MediaHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)

	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing video file"})
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
	if !h.allowedFormat(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("format %q not allowed", ext)})
		return
	}

	fileName := randomHex(16) + "." + ext
	path := filepath.Join(h.cfg.UploadDir, fileName)
	if err := c.SaveUploadedFile(file, path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	item := &models.MediaItem{
		FileName:     fileName,
		OriginalName: file.Filename,
		Path:         path,
		SizeBytes:    file.Size,
		Source:       models.MediaSourceUpload,
	}

	if h.archive != nil {
		key := "media/" + fileName
		if err := h.archive.PutFile(c.Request.Context(), key, path, "video/"+ext); err != nil {
			slog.Warn("archive upload", "file", fileName, "error", err)
		} else {
			item.ArchiveKey = key
		}
	}

	if err := h.db.CreateMedia(c.Request.Context(), item); err != nil {
		os.Remove(path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *MediaHandler) Import(c *gin.Context) {
	var req dto.ImportMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.fetcher.Import(c.Request.Context(), req.URL, req.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, media.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *MediaHandler) List(c *gin.Context) {
	items, err := h.db.ListMedia(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": items, "total": len(items)})
}

func (h *MediaHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return
	}

	item, err := h.db.GetMedia(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}

	// Force-stop any stream playing this video before deleting it.
	stopped := h.registry.StopWhere(c.Request.Context(), func(videoID, _ uuid.UUID) bool {
		return videoID == id
	})

	if err := h.db.DeleteMedia(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove media file", "path", item.Path, "error", err)
	}
	if h.archive != nil && item.ArchiveKey != "" {
		if err := h.archive.DeleteObject(c.Request.Context(), item.ArchiveKey); err != nil {
			slog.Warn("remove archived media", "key", item.ArchiveKey, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "stopped_streams": len(stopped)})
}

func (h *MediaHandler) allowedFormat(ext string) bool {
	for _, f := range h.cfg.AllowedFormats {
		if f == ext {
			return true
		}
	}
	return false
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
