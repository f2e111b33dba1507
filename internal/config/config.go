package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Media    MediaConfig    `yaml:"media"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NATSConfig enables mirroring lifecycle events to NATS when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ArchiveConfig enables mirroring uploaded media to S3-compatible storage
// when Endpoint is set.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (a ArchiveConfig) Enabled() bool { return a.Endpoint != "" }

type MediaConfig struct {
	UploadDir      string   `yaml:"upload_dir"`
	TempDir        string   `yaml:"temp_dir"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	AllowedFormats []string `yaml:"allowed_formats"`
}

// EncoderConfig holds the fixed ffmpeg output policy. These are operator
// configuration, never computed per stream.
type EncoderConfig struct {
	VideoCodec       string `yaml:"video_codec"`
	Preset           string `yaml:"preset"`
	MaxRate          string `yaml:"max_rate"`
	BufferSize       string `yaml:"buffer_size"`
	PixelFormat      string `yaml:"pixel_format"`
	KeyframeInterval int    `yaml:"keyframe_interval"`
	AudioCodec       string `yaml:"audio_codec"`
	AudioBitrate     string `yaml:"audio_bitrate"`
	AudioSampleRate  string `yaml:"audio_sample_rate"`
	OutputFormat     string `yaml:"output_format"`
}

type RegistryConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable
// overrides. A .env file in the working directory is honoured when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "streamhub.events"
	}
	if cfg.Media.UploadDir == "" {
		cfg.Media.UploadDir = "uploads"
	}
	if cfg.Media.TempDir == "" {
		cfg.Media.TempDir = "temp"
	}
	if cfg.Media.MaxUploadBytes == 0 {
		cfg.Media.MaxUploadBytes = 5 * 1024 * 1024 * 1024
	}
	if len(cfg.Media.AllowedFormats) == 0 {
		cfg.Media.AllowedFormats = []string{"mp4", "avi", "mkv", "mov", "flv", "wmv", "webm"}
	}
	if cfg.Encoder.VideoCodec == "" {
		cfg.Encoder.VideoCodec = "libx264"
	}
	if cfg.Encoder.Preset == "" {
		cfg.Encoder.Preset = "veryfast"
	}
	if cfg.Encoder.MaxRate == "" {
		cfg.Encoder.MaxRate = "3000k"
	}
	if cfg.Encoder.BufferSize == "" {
		cfg.Encoder.BufferSize = "6000k"
	}
	if cfg.Encoder.PixelFormat == "" {
		cfg.Encoder.PixelFormat = "yuv420p"
	}
	if cfg.Encoder.KeyframeInterval == 0 {
		cfg.Encoder.KeyframeInterval = 50
	}
	if cfg.Encoder.AudioCodec == "" {
		cfg.Encoder.AudioCodec = "aac"
	}
	if cfg.Encoder.AudioBitrate == "" {
		cfg.Encoder.AudioBitrate = "160k"
	}
	if cfg.Encoder.AudioSampleRate == "" {
		cfg.Encoder.AudioSampleRate = "44100"
	}
	if cfg.Encoder.OutputFormat == "" {
		cfg.Encoder.OutputFormat = "flv"
	}
	if cfg.Registry.ProbeInterval == 0 {
		cfg.Registry.ProbeInterval = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STREAMHUB_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STREAMHUB_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("STREAMHUB_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("STREAMHUB_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("STREAMHUB_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("STREAMHUB_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("STREAMHUB_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("STREAMHUB_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("STREAMHUB_ARCHIVE_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("STREAMHUB_ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("STREAMHUB_ARCHIVE_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("STREAMHUB_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("STREAMHUB_UPLOAD_DIR"); v != "" {
		cfg.Media.UploadDir = v
	}
	if v := os.Getenv("STREAMHUB_TEMP_DIR"); v != "" {
		cfg.Media.TempDir = v
	}
	if v := os.Getenv("STREAMHUB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("STREAMHUB_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
}
