package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads configuration from file and environment.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty configPath searches the
// default locations.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	v.SetEnvPrefix("MINDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{
		configPath: configPath,
		v:          v,
	}
}

// Load merges defaults, file values, and environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setDefaults(cfg)

	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
	} else {
		l.v.SetConfigName("mindsync")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(homeDir, ".config", "mindsync"))
			l.v.AddConfigPath(filepath.Join(homeDir, ".mindsync"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// An explicit path that is missing is still an error.
			if l.configPath != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers defaults so env-only keys resolve without a file.
func (l *Loader) setDefaults(cfg *Config) {
	l.v.SetDefault("api.base_url", cfg.API.BaseURL)
	l.v.SetDefault("api.timeout", cfg.API.Timeout)
	l.v.SetDefault("api.max_retries", cfg.API.MaxRetries)
	l.v.SetDefault("api.user_agent", cfg.API.UserAgent)
	l.v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	l.v.SetDefault("storage.driver", cfg.Storage.Driver)
	l.v.SetDefault("connectivity.prober", cfg.Connectivity.Prober)
	l.v.SetDefault("connectivity.probe_url", cfg.Connectivity.ProbeURL)
	l.v.SetDefault("connectivity.probe_interval", cfg.Connectivity.ProbeInterval)
	l.v.SetDefault("log.level", cfg.Log.Level)
	l.v.SetDefault("log.format", cfg.Log.Format)
	l.v.SetDefault("log.file", cfg.Log.File)
	l.v.SetDefault("log.color", cfg.Log.Color)
}
