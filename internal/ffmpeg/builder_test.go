package ffmpeg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/streamhub/internal/config"
	"github.com/your-org/streamhub/internal/models"
)

func testEncoder() config.EncoderConfig {
	return config.EncoderConfig{
		VideoCodec:       "libx264",
		Preset:           "veryfast",
		MaxRate:          "3000k",
		BufferSize:       "6000k",
		PixelFormat:      "yuv420p",
		KeyframeInterval: 50,
		AudioCodec:       "aac",
		AudioBitrate:     "160k",
		AudioSampleRate:  "44100",
		OutputFormat:     "flv",
	}
}

func item(path string) models.MediaItem {
	return models.MediaItem{Path: path}
}

func TestBuildInvocationSinglePlayOnce(t *testing.T) {
	b := NewBuilder(t.TempDir(), testEncoder())

	args, manifest, err := b.BuildInvocation([]models.MediaItem{item("/videos/a.mp4")}, nil, "rtmp://live/key")
	require.NoError(t, err)
	assert.Empty(t, manifest)

	assert.Equal(t, []string{
		"-re", "-i", "/videos/a.mp4",
		"-c:v", "libx264", "-preset", "veryfast",
		"-maxrate", "3000k", "-bufsize", "6000k",
		"-pix_fmt", "yuv420p", "-g", "50",
		"-c:a", "aac", "-b:a", "160k", "-ar", "44100",
		"-f", "flv", "rtmp://live/key",
	}, args)
}

func TestBuildInvocationSingleInfinite(t *testing.T) {
	b := NewBuilder(t.TempDir(), testEncoder())
	loop := &models.LoopConfig{Type: models.LoopInfinite}

	args, manifest, err := b.BuildInvocation([]models.MediaItem{item("/videos/a.mp4")}, loop, "rtmp://live/key")
	require.NoError(t, err)
	assert.Empty(t, manifest)
	assert.Equal(t, []string{"-stream_loop", "-1", "-re", "-i", "/videos/a.mp4"}, args[:5])
}

func TestBuildInvocationCountRepeatsManifest(t *testing.T) {
	b := NewBuilder(t.TempDir(), testEncoder())
	loop := &models.LoopConfig{Type: models.LoopCount, RepeatCount: 3}
	items := []models.MediaItem{item("/videos/a.mp4"), item("/videos/b.mp4")}

	args, manifest, err := b.BuildInvocation(items, loop, "rtmp://live/key")
	require.NoError(t, err)
	require.NotEmpty(t, manifest)
	assert.Equal(t, []string{"-f", "concat", "-safe", "0", "-re", "-i", manifest}, args[:7])

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "file '/videos/a.mp4'", lines[0])
	assert.Equal(t, "file '/videos/b.mp4'", lines[1])
	assert.Equal(t, "file '/videos/a.mp4'", lines[4])
}

func TestBuildInvocationInfiniteMultiSelfReferences(t *testing.T) {
	b := NewBuilder(t.TempDir(), testEncoder())
	loop := &models.LoopConfig{Type: models.LoopInfinite}
	items := []models.MediaItem{item("/videos/a.mp4"), item("/videos/b.mp4")}

	_, manifest, err := b.BuildInvocation(items, loop, "rtmp://live/key")
	require.NoError(t, err)

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file '"+manifest+"'", lines[2])
}

func TestManifestEscapesSingleQuotes(t *testing.T) {
	b := NewBuilder(t.TempDir(), testEncoder())
	loop := &models.LoopConfig{Type: models.LoopCount, RepeatCount: 1}
	items := []models.MediaItem{item("/videos/it's here.mp4"), item("/videos/b.mp4")}

	_, manifest, err := b.BuildInvocation(items, loop, "rtmp://live/key")
	require.NoError(t, err)

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `file '/videos/it'\''s here.mp4'`)
}

func TestCleanupRemovesManifest(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir, testEncoder())
	loop := &models.LoopConfig{Type: models.LoopCount, RepeatCount: 2}

	_, manifest, err := b.BuildInvocation([]models.MediaItem{item("/videos/a.mp4")}, loop, "rtmp://live/key")
	require.NoError(t, err)
	require.FileExists(t, manifest)

	b.Cleanup(manifest)
	assert.NoFileExists(t, manifest)

	b.Cleanup(manifest) // removing twice is fine
	b.Cleanup("")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildInvocationNoItems(t *testing.T) {
	b := NewBuilder(t.TempDir(), testEncoder())
	_, _, err := b.BuildInvocation(nil, nil, "rtmp://live/key")
	assert.Error(t, err)
}

func TestManifestLivesInTempDir(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir, testEncoder())
	loop := &models.LoopConfig{Type: models.LoopCount, RepeatCount: 2}

	_, manifest, err := b.BuildInvocation([]models.MediaItem{item("/videos/a.mp4")}, loop, "rtmp://live/key")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(manifest))
}
