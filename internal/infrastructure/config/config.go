// Package config provides configuration structs and utilities for the
// viberater client.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config represents the root configuration for the viberater client.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Chat    ChatConfig    `yaml:"chat"`
}

// APIConfig holds the remote API endpoint and credentials.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	AccessToken  string        `yaml:"access_token,omitempty"`
	RefreshToken string        `yaml:"refresh_token,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
}

// StorageConfig holds local cache settings.
type StorageConfig struct {
	// Path is the SQLite database file. Empty selects the default
	// ~/.viberater/viberater.db; ":memory:" selects an ephemeral store.
	Path string `yaml:"path"`
}

// SyncConfig holds sync engine and connectivity monitor settings.
type SyncConfig struct {
	// ProbeInterval is how often the monitor pings the API health endpoint.
	ProbeInterval time.Duration `yaml:"probe_interval"`
	// Debounce coalesces near-simultaneous online signals into one replay.
	Debounce time.Duration `yaml:"debounce"`
	// OfflineMarker is a file whose presence forces offline mode; watched
	// with fsnotify. Empty selects ~/.viberater/offline.
	OfflineMarker string `yaml:"offline_marker"`
	// MaxAttempts bounds replay retries per operation before it is reported
	// as stuck; zero means retry forever. Validation rejections dead-letter
	// immediately regardless.
	MaxAttempts int `yaml:"max_attempts"`
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds configuration for tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// ChatConfig holds defaults for the idea refinement chat flow.
type ChatConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:3001/api"
	DefaultTimeout       = 30 * time.Second
	DefaultProbeInterval = 15 * time.Second
	DefaultDebounce      = 250 * time.Millisecond
	DefaultMaxAttempts   = 0
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultServiceName   = "viberater"
)

// NewDefaultConfig returns a Config populated with defaults.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Sync: SyncConfig{
			ProbeInterval: DefaultProbeInterval,
			Debounce:      DefaultDebounce,
			MaxAttempts:   DefaultMaxAttempts,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ExporterType: "none",
			SampleRate:   1.0,
			ServiceName:  DefaultServiceName,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.Sync.ProbeInterval < 0 {
		return fmt.Errorf("sync.probe_interval must not be negative")
	}
	if c.Sync.MaxAttempts < 0 {
		return fmt.Errorf("sync.max_attempts must not be negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format)
	}
	switch c.Tracing.ExporterType {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter_type %q is not one of none, stdout, otlp", c.Tracing.ExporterType)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}
	return nil
}
