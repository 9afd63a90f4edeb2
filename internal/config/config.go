package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config is built once at startup and passed to every constructor.
type Config struct {
	GRPCAddr    string `env:"PF_GRPC_ADDR" envDefault:":50051"`
	MetricsPort int    `env:"PF_METRICS_PORT" envDefault:"9090"`

	DBDriver    string `env:"PF_DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"PF_DATABASE_URL,required"`

	UploadRoot  string `env:"PF_UPLOAD_ROOT" envDefault:"./data/uploads"`
	PreviewRoot string `env:"PF_PREVIEW_ROOT"`

	ConverterPath    string        `env:"PF_CONVERTER_PATH" envDefault:"soffice"`
	ConverterTimeout time.Duration `env:"PF_CONVERTER_TIMEOUT" envDefault:"60s"`
	ThumbnailWidth   int           `env:"PF_THUMBNAIL_WIDTH" envDefault:"800"`

	MaxUploadBytes       int64 `env:"PF_MAX_UPLOAD_BYTES" envDefault:"16777216"`
	MaxConcurrentUploads int64 `env:"PF_MAX_CONCURRENT_UPLOADS" envDefault:"8"`

	APIKeys []string `env:"PF_API_KEYS,required" envSeparator:","`

	Dev         bool          `env:"PF_DEV" envDefault:"false"`
	LogLevel    zapcore.Level `env:"PF_LOG_LEVEL" envDefault:"info"`
	TraceStdout bool          `env:"PF_TRACE_STDOUT" envDefault:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(&cfg)
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if cfg.PreviewRoot == "" {
		cfg.PreviewRoot = filepath.Join(cfg.UploadRoot, "preview")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("PF_DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}
	if c.UploadRoot == "" {
		errs = append(errs, errors.New("PF_UPLOAD_ROOT must not be empty"))
	}
	if c.ConverterTimeout <= 0 {
		errs = append(errs, errors.New("PF_CONVERTER_TIMEOUT must be positive"))
	}
	if c.ThumbnailWidth <= 0 {
		errs = append(errs, errors.New("PF_THUMBNAIL_WIDTH must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("PF_MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MaxConcurrentUploads <= 0 {
		errs = append(errs, errors.New("PF_MAX_CONCURRENT_UPLOADS must be positive"))
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("PF_METRICS_PORT out of range: %d", c.MetricsPort))
	}

	keys := 0
	for _, k := range c.APIKeys {
		if k != "" {
			keys++
		}
	}
	if keys == 0 {
		errs = append(errs, errors.New("PF_API_KEYS must list at least one key"))
	}

	return errors.Join(errs...)
}
