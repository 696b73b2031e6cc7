package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
	StorageS3         = "s3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Observability ObservabilityConfig `yaml:"observability"`
	Worker        WorkerConfig        `yaml:"worker"`
	CORS          CORSConfig          `yaml:"cors"`
}

type ServerConfig struct {
	Addr                 string        `yaml:"addr"`
	MetricsPort          string        `yaml:"metrics_port"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
	MaxConcurrentUploads int64         `yaml:"max_concurrent_uploads"`
	UploadQueueTimeout   time.Duration `yaml:"upload_queue_timeout"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Type       string   `yaml:"type"`
	VideoDir   string   `yaml:"video_dir"`
	Extensions []string `yaml:"extensions"`
	S3         S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ObservabilityConfig struct {
	Dev     bool `yaml:"dev"`
	Tracing bool `yaml:"tracing"`
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                 ":8080",
			MetricsPort:          "9090",
			MaxUploadBytes:       2 << 30,
			MaxConcurrentUploads: 4,
			UploadQueueTimeout:   30 * time.Second,
			ShutdownTimeout:      10 * time.Second,
		},
		Storage: StorageConfig{
			Type:       StorageFilesystem,
			VideoDir:   "./public/videos",
			Extensions: []string{".mp4"},
		},
		Worker: WorkerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

// Load reads the YAML file at path (if any) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("CVIDEO_ADDR", &cfg.Server.Addr)
	str("CVIDEO_METRICS_PORT", &cfg.Server.MetricsPort)
	str("CVIDEO_STORAGE", &cfg.Storage.Type)
	str("CVIDEO_VIDEO_DIR", &cfg.Storage.VideoDir)
	str("CVIDEO_S3_BUCKET", &cfg.Storage.S3.Bucket)
	str("CVIDEO_S3_PREFIX", &cfg.Storage.S3.Prefix)
	str("CVIDEO_S3_REGION", &cfg.Storage.S3.Region)
	str("CVIDEO_S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	str("DATABASE_URL", &cfg.Database.URL)

	if v, ok := lookup("CVIDEO_CORS_ORIGINS"); ok && v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("CVIDEO_EXTENSIONS"); ok && v != "" {
		cfg.Storage.Extensions = splitList(v)
	}

	var errs []error
	if v, ok := lookup("CVIDEO_MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CVIDEO_MAX_UPLOAD_BYTES: %w", err))
		}
		cfg.Server.MaxUploadBytes = n
	}
	if v, ok := lookup("CVIDEO_DEV"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CVIDEO_DEV: %w", err))
		}
		cfg.Observability.Dev = b
	}
	if v, ok := lookup("CVIDEO_TRACING"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CVIDEO_TRACING: %w", err))
		}
		cfg.Observability.Tracing = b
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case StorageFilesystem:
		if c.Storage.VideoDir == "" {
			return errors.New("storage.video_dir is required for filesystem storage")
		}
	case StorageMemory:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %q", c.Storage.Type)
	}

	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must not be negative: %d", c.Server.MaxUploadBytes)
	}
	if c.Server.MaxConcurrentUploads < 0 {
		return fmt.Errorf("server.max_concurrent_uploads must not be negative: %d", c.Server.MaxConcurrentUploads)
	}

	// Zero values fall back to defaults.
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MetricsPort == "" {
		c.Server.MetricsPort = d.Server.MetricsPort
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = d.Server.MaxUploadBytes
	}
	if c.Server.MaxConcurrentUploads == 0 {
		c.Server.MaxConcurrentUploads = d.Server.MaxConcurrentUploads
	}
	if c.Server.UploadQueueTimeout <= 0 {
		c.Server.UploadQueueTimeout = d.Server.UploadQueueTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if len(c.Storage.Extensions) == 0 {
		c.Storage.Extensions = d.Storage.Extensions
	}
	for i, ext := range c.Storage.Extensions {
		if !strings.HasPrefix(ext, ".") {
			c.Storage.Extensions[i] = "." + ext
		}
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = d.Worker.PollInterval
	}
	return nil
}
