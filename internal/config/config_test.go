package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: streamhub
  user: streamhub
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "streamhub.events", cfg.NATS.Subject)
	assert.Equal(t, "uploads", cfg.Media.UploadDir)
	assert.Equal(t, "libx264", cfg.Encoder.VideoCodec)
	assert.Equal(t, "veryfast", cfg.Encoder.Preset)
	assert.Equal(t, "3000k", cfg.Encoder.MaxRate)
	assert.Equal(t, "6000k", cfg.Encoder.BufferSize)
	assert.Equal(t, 50, cfg.Encoder.KeyframeInterval)
	assert.Equal(t, "flv", cfg.Encoder.OutputFormat)
	assert.Equal(t, 5*time.Second, cfg.Registry.ProbeInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Contains(t, cfg.Media.AllowedFormats, "mp4")
	assert.False(t, cfg.Archive.Enabled())
}

func TestLoadDSN(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  name: hub
  user: app
  password: pw
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:pw@db.internal:5433/hub?sslmode=disable", cfg.Database.DSN())
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  host: localhost
`)

	t.Setenv("STREAMHUB_SERVER_PORT", "7000")
	t.Setenv("STREAMHUB_DB_HOST", "other-host")
	t.Setenv("STREAMHUB_API_KEY", "sekret")
	t.Setenv("STREAMHUB_LOG_LEVEL", "DEBUG")
	t.Setenv("STREAMHUB_ARCHIVE_ENDPOINT", "minio:9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "other-host", cfg.Database.Host)
	assert.Equal(t, "sekret", cfg.Server.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Archive.Enabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
