package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	stratumerr "github.com/23skdu/stratum/internal/errors"
	"github.com/kelseyhightower/envconfig"
)

func TestValidateConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("ValidateConfig() error = %v, want nil", err)
	}
}

func TestValidateConfig_InvalidLogFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFormat = "xml"
	if err := ValidateConfig(&cfg); err != ErrInvalidLogFormat {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidLogFormat)
	}
}

func TestValidateConfig_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := DefaultConfig()
		cfg.LogLevel = level
		if err := ValidateConfig(&cfg); err != nil {
			t.Errorf("ValidateConfig() with level %q error = %v, want nil", level, err)
		}
	}
}

func TestValidateConfig_InvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	if err := ValidateConfig(&cfg); err != ErrInvalidLogLevel {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidLogLevel)
	}
}

func TestValidateConfig_InvalidMaxBlockBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBlockBytes = 0
	if err := ValidateConfig(&cfg); err != ErrInvalidMaxBlockBytes {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidMaxBlockBytes)
	}

	cfg.MaxBlockBytes = -1
	if err := ValidateConfig(&cfg); err != ErrInvalidMaxBlockBytes {
		t.Errorf("ValidateConfig() with negative error = %v, want %v", err, ErrInvalidMaxBlockBytes)
	}
}

func TestValidateConfig_InvalidVerifyConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VerifyConcurrency = 0
	if err := ValidateConfig(&cfg); err != ErrInvalidVerifyConcurrency {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidVerifyConcurrency)
	}
}

// TestConfigDefaultsMatchEnvconfig checks that the envconfig default tags and
// DefaultConfig agree.
func TestConfigDefaultsMatchEnvconfig(t *testing.T) {
	var cfg Config
	if err := envconfig.Process("STRATUM_TEST_UNSET", &cfg); err != nil {
		t.Fatalf("Failed to process config: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("envconfig defaults = %+v, want %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfig_EnvVars(t *testing.T) {
	t.Setenv("STRATUM_LOG_FORMAT", "console")
	t.Setenv("STRATUM_LOG_LEVEL", "debug")
	t.Setenv("STRATUM_MAX_BLOCK_BYTES", "4096")
	t.Setenv("STRATUM_VERIFY_CONCURRENCY", "2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := Config{LogFormat: "console", LogLevel: "debug", MaxBlockBytes: 4096, VerifyConcurrency: 2}
	if cfg != want {
		t.Errorf("LoadConfig() = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("STRATUM_VERIFY_CONCURRENCY", "0")
	_, err := LoadConfig()
	if !errors.Is(err, ErrInvalidVerifyConcurrency) {
		t.Errorf("LoadConfig() error = %v, want %v", err, ErrInvalidVerifyConcurrency)
	}
	if !stratumerr.IsType(err, stratumerr.ErrorTypeConfiguration) {
		t.Errorf("LoadConfig() error = %v, want a configuration error", err)
	}
}

func TestLoadConfig_Unparsable(t *testing.T) {
	t.Setenv("STRATUM_MAX_BLOCK_BYTES", "lots")
	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want an error")
	}
	if !stratumerr.IsType(err, stratumerr.ErrorTypeConfiguration) {
		t.Errorf("LoadConfig() error = %v, want a configuration error", err)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STRATUM_VERIFY_CONCURRENCY=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	// godotenv sets the variable directly; clear it when the test ends
	t.Setenv("STRATUM_VERIFY_CONCURRENCY", "")
	if err := os.Unsetenv("STRATUM_VERIFY_CONCURRENCY"); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.VerifyConcurrency != 7 {
		t.Errorf("VerifyConcurrency = %d, want 7", cfg.VerifyConcurrency)
	}
}
