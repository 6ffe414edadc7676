package main

import (
	"errors"
	"io/fs"

	stratumerr "github.com/23skdu/stratum/internal/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is read from STRATUM_* environment variables, optionally seeded from
// a .env file in the working directory.
type Config struct {
	LogFormat         string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	MaxBlockBytes     int64  `envconfig:"MAX_BLOCK_BYTES" default:"1073741824"`
	VerifyConcurrency int    `envconfig:"VERIFY_CONCURRENCY" default:"4"`
}

// Config validation errors
var (
	ErrInvalidLogFormat         = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel          = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidMaxBlockBytes     = errors.New("max_block_bytes must be positive")
	ErrInvalidVerifyConcurrency = errors.New("verify_concurrency must be positive")
)

// LoadConfig loads .env when present and processes the environment. Every
// failure is a configuration error wrapping its cause.
func LoadConfig() (Config, error) {
	const op = "load_config"
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, stratumerr.WrapConfigurationError(err, op, "load .env")
	}
	var cfg Config
	if err := envconfig.Process("STRATUM", &cfg); err != nil {
		return Config{}, stratumerr.WrapConfigurationError(err, op, "process environment")
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, stratumerr.WrapConfigurationError(err, op, "invalid configuration")
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if cfg.MaxBlockBytes <= 0 {
		return ErrInvalidMaxBlockBytes
	}
	if cfg.VerifyConcurrency <= 0 {
		return ErrInvalidVerifyConcurrency
	}
	return nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		LogFormat:         "json",
		LogLevel:          "info",
		MaxBlockBytes:     1073741824, // 1GB
		VerifyConcurrency: 4,
	}
}
