package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.API.Timeout, DefaultTimeout)
	}
	if cfg.Sync.ProbeInterval != DefaultProbeInterval {
		t.Errorf("ProbeInterval = %v, want %v", cfg.Sync.ProbeInterval, DefaultProbeInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, true},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, true},
		{"negative probe interval", func(c *Config) { c.Sync.ProbeInterval = -time.Second }, true},
		{"negative max attempts", func(c *Config) { c.Sync.MaxAttempts = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.ExporterType = "jaeger" }, true},
		{"sample rate too high", func(c *Config) { c.Tracing.SampleRate = 1.5 }, true},
		{"valid overrides", func(c *Config) {
			c.Logging.Level = "debug"
			c.Tracing.ExporterType = "stdout"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_LoadMissingReturnsDefaults(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("missing file should yield defaults, got base url %q", cfg.API.BaseURL)
	}
}

func TestLoader_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	cfg := NewDefaultConfig()
	cfg.API.BaseURL = "https://vibes.example.com/api"
	cfg.API.AccessToken = "token-1"
	cfg.Sync.MaxAttempts = 5
	cfg.Storage.Path = filepath.Join(dir, "cache.db")

	if err := loader.Save(cfg, ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.API.BaseURL != cfg.API.BaseURL {
		t.Errorf("BaseURL = %q, want %q", loaded.API.BaseURL, cfg.API.BaseURL)
	}
	if loaded.API.AccessToken != "token-1" {
		t.Errorf("AccessToken = %q", loaded.API.AccessToken)
	}
	if loaded.Sync.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", loaded.Sync.MaxAttempts)
	}
}

func TestLoader_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  base_url: https://other.example.com\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://other.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	// Unspecified fields keep their defaults.
	if cfg.API.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", cfg.API.Timeout, DefaultTimeout)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Level = %q, want default %q", cfg.Logging.Level, DefaultLogLevel)
	}
}

func TestLoader_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api: [not a map"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if _, err := loader.Load(""); err == nil {
		t.Error("Load() with malformed yaml should fail")
	}
}
