package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/streamhub/internal/models"
)

type fakeStore struct {
	mu    sync.Mutex
	items []*models.MediaItem
	err   error
}

func (f *fakeStore) CreateMedia(_ context.Context, item *models.MediaItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

func TestDirectDownloadURL(t *testing.T) {
	cases := map[string]string{
		"https://www.dropbox.com/s/abc/video.mp4?dl=0": "https://www.dropbox.com/s/abc/video.mp4?dl=1",
		"https://www.dropbox.com/s/abc/video.mp4":      "https://www.dropbox.com/s/abc/video.mp4?dl=1",
		"https://example.com/video.mp4":                "https://example.com/video.mp4",
	}
	for in, want := range cases {
		got, err := directDownloadURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := directDownloadURL("not a url")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestImportDownloadsAndRegisters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	db := &fakeStore{}
	f := NewFetcher(db, t.TempDir())

	item, err := f.Import(context.Background(), srv.URL+"/clip.mp4", "")
	require.NoError(t, err)

	assert.Equal(t, "clip.mp4", item.OriginalName)
	assert.Equal(t, models.MediaSourceRemote, item.Source)
	assert.Equal(t, int64(len("video-bytes")), item.SizeBytes)

	data, err := os.ReadFile(item.Path)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestImportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(&fakeStore{}, t.TempDir())
	_, err := f.Import(context.Background(), srv.URL+"/gone.mp4", "")
	assert.Error(t, err)
}

func TestImportPersistFailureRemovesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(&fakeStore{err: assert.AnError}, dir)

	_, err := f.Import(context.Background(), srv.URL+"/clip.mp4", "")
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
