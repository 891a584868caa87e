package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration for the remote sync endpoint.
	API APIConfig `mapstructure:"api" json:"api"`

	// Storage paths and driver selection.
	Storage StorageConfig `mapstructure:"storage" json:"storage"`

	// Connectivity probing behavior.
	Connectivity ConnectivityConfig `mapstructure:"connectivity" json:"connectivity"`

	// Logging.
	Log LogConfig `mapstructure:"log" json:"log"`
}

// APIConfig for remote endpoint communication.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url" json:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" json:"max_retries"`
	Token      string        `mapstructure:"token" json:"token,omitempty"`
	UserAgent  string        `mapstructure:"user_agent" json:"user_agent"`
}

// StorageConfig for the local durable store.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// Driver selects the durable store backend: "sqlite" or "json".
	Driver string `mapstructure:"driver" json:"driver"`
}

// ConnectivityConfig for reachability probing.
type ConnectivityConfig struct {
	// Prober selects the probe mechanism: "http" or "websocket".
	Prober string `mapstructure:"prober" json:"prober"`

	ProbeURL      string        `mapstructure:"probe_url" json:"probe_url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" json:"probe_interval"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // empty = stdout
	Color  bool   `mapstructure:"color" json:"color"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".mindsync"

	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.mindwell.app",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			UserAgent:  "mindsync/1.0",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
			Driver:  "sqlite",
		},
		Connectivity: ConnectivityConfig{
			Prober:        "http",
			ProbeURL:      "https://api.mindwell.app/healthz",
			ProbeInterval: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries cannot be negative")
	}

	switch c.Storage.Driver {
	case "sqlite", "json":
	default:
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}

	switch c.Connectivity.Prober {
	case "http", "websocket":
	default:
		return fmt.Errorf("invalid connectivity prober: %s", c.Connectivity.Prober)
	}

	if c.Connectivity.ProbeInterval <= 0 {
		return errors.New("connectivity.probe_interval must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Storage.DataDir}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// StorePath returns the durable store location for the configured driver.
func (c *Config) StorePath() string {
	if c.Storage.Driver == "sqlite" {
		return filepath.Join(c.Storage.DataDir, "mindsync.db")
	}
	return filepath.Join(c.Storage.DataDir, "store")
}
