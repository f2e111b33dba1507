// Package media imports video files from remote share links into the local
// upload directory.
package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/your-org/streamhub/internal/models"
)

var ErrInvalidInput = errors.New("invalid input")

// Store is the subset of the persistent store the fetcher needs.
type Store interface {
	CreateMedia(ctx context.Context, item *models.MediaItem) error
}

// Fetcher downloads remote videos into the upload directory and registers
// them as media items.
type Fetcher struct {
	db        Store
	uploadDir string
	client    *http.Client
}

func NewFetcher(db Store, uploadDir string) *Fetcher {
	return &Fetcher{
		db:        db,
		uploadDir: uploadDir,
		client:    &http.Client{Timeout: 30 * time.Minute},
	}
}

// Import downloads the file behind shareURL and registers it. Dropbox share
// links are rewritten to their direct-download form first.
func (f *Fetcher) Import(ctx context.Context, shareURL, originalName string) (*models.MediaItem, error) {
	directURL, err := directDownloadURL(shareURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", directURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", directURL, resp.StatusCode)
	}

	if originalName == "" {
		originalName = fileNameFromURL(directURL)
	}
	fileName := randomHex(16) + filepath.Ext(originalName)
	path := filepath.Join(f.uploadDir, fileName)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}
	size, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write media file: %w", err)
	}

	item := &models.MediaItem{
		FileName:     fileName,
		OriginalName: originalName,
		Path:         path,
		SizeBytes:    size,
		Source:       models.MediaSourceRemote,
	}
	if err := f.db.CreateMedia(ctx, item); err != nil {
		os.Remove(path)
		return nil, err
	}

	slog.Info("remote media imported", "id", item.ID, "name", originalName, "size", size)
	return item, nil
}

// directDownloadURL turns a Dropbox share link into its direct-download form
// by forcing dl=1. Other URLs pass through unchanged.
func directDownloadURL(shareURL string) (string, error) {
	u, err := url.Parse(shareURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: malformed url %q", ErrInvalidInput, shareURL)
	}

	if strings.HasSuffix(u.Host, "dropbox.com") {
		q := u.Query()
		q.Set("dl", "1")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "video"
	}
	name := filepath.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "video"
	}
	return name
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
