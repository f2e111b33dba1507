// Package ffmpeg builds transcoder invocations and supervises the resulting
// child processes. The transcoder is treated as an opaque external program;
// nothing here parses its output beyond relaying stderr to the log.
package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/config"
	"github.com/your-org/streamhub/internal/models"
)

// Builder produces ffmpeg argument lists for publishing media to an RTMP
// endpoint. Output encoding parameters are fixed policy from config.
type Builder struct {
	tempDir string
	enc     config.EncoderConfig
}

func NewBuilder(tempDir string, enc config.EncoderConfig) *Builder {
	return &Builder{tempDir: tempDir, enc: enc}
}

// BuildInvocation returns the argument list for streaming items to outputURL
// under the given loop policy (nil means play once), plus the path of the
// concat manifest it wrote, or "" when no manifest was needed. The caller
// owns the manifest and must remove it when the stream ends.
func (b *Builder) BuildInvocation(items []models.MediaItem, loop *models.LoopConfig, outputURL string) ([]string, string, error) {
	if len(items) == 0 {
		return nil, "", fmt.Errorf("no media items")
	}

	// A single item looped forever uses the native input loop flag.
	if loop != nil && loop.Infinite() && len(items) == 1 {
		args := []string{"-stream_loop", "-1", "-re", "-i", items[0].Path}
		return append(args, b.encoderArgs(outputURL)...), "", nil
	}

	// A single item played once needs no manifest either.
	if loop == nil && len(items) == 1 {
		args := []string{"-re", "-i", items[0].Path}
		return append(args, b.encoderArgs(outputURL)...), "", nil
	}

	copies := 1
	selfRef := false
	if loop != nil {
		switch loop.Type {
		case models.LoopCount:
			if loop.RepeatCount > 0 {
				copies = loop.RepeatCount
			}
		case models.LoopInfinite:
			selfRef = true
		}
	}

	manifest, err := b.writeManifest(items, copies, selfRef)
	if err != nil {
		return nil, "", err
	}

	args := []string{"-f", "concat", "-safe", "0", "-re", "-i", manifest}
	return append(args, b.encoderArgs(outputURL)...), manifest, nil
}

// writeManifest writes a concat demuxer playlist: every item once per copy.
// With selfRef the manifest ends with a line referencing itself so the
// demuxer loops the playlist indefinitely. This relies on the concat
// demuxer honouring a self-referencing entry; the registry's restart path
// covers transcoder builds that reject it.
func (b *Builder) writeManifest(items []models.MediaItem, copies int, selfRef bool) (string, error) {
	if err := os.MkdirAll(b.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	path := filepath.Join(b.tempDir, "playlist_"+uuid.New().String()+".txt")

	var sb strings.Builder
	for i := 0; i < copies; i++ {
		for _, item := range items {
			sb.WriteString("file '" + escapeManifestPath(item.Path) + "'\n")
		}
	}
	if selfRef {
		sb.WriteString("file '" + escapeManifestPath(path) + "'\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// Cleanup removes a manifest written by BuildInvocation. Safe to call with
// an empty path or after the file is already gone.
func (b *Builder) Cleanup(manifest string) {
	if manifest == "" {
		return
	}
	if err := os.Remove(manifest); err != nil && !os.IsNotExist(err) {
		// Nothing actionable; the temp dir is cleaned on restart anyway.
		_ = err
	}
}

// escapeManifestPath doubles single quotes per the concat demuxer quoting
// rules.
func escapeManifestPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

func (b *Builder) encoderArgs(outputURL string) []string {
	return []string{
		"-c:v", b.enc.VideoCodec,
		"-preset", b.enc.Preset,
		"-maxrate", b.enc.MaxRate,
		"-bufsize", b.enc.BufferSize,
		"-pix_fmt", b.enc.PixelFormat,
		"-g", strconv.Itoa(b.enc.KeyframeInterval),
		"-c:a", b.enc.AudioCodec,
		"-b:a", b.enc.AudioBitrate,
		"-ar", b.enc.AudioSampleRate,
		"-f", b.enc.OutputFormat,
		outputURL,
	}
}
