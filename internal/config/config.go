package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's configuration surface: debounce window, fingerprint
// TTL, and search index path, plus logging level.
type Config struct {
	WatchDebounce   time.Duration `yaml:"watch_debounce"`
	FingerprintTTL  time.Duration `yaml:"fingerprint_ttl"`
	SearchIndexPath string        `yaml:"search_index_path"`
	Log             LogConfig     `yaml:"log"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		WatchDebounce:   500 * time.Millisecond,
		FingerprintTTL:  10 * time.Second,
		SearchIndexPath: defaultSearchIndexPath(),
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultSearchIndexPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "boardcore", "search.db")
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadFromPath loads configuration from an explicit file path (e.g. a
// --config flag), falling back to defaults for anything the file omits,
// then applying the same BOARDCORE_* environment overrides as Load.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg, os.Getenv)
	return cfg, nil
}

// LoadWithEnv loads configuration using the provided environment lookup function.
// This allows tests to provide isolated environment values.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg, getenv)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if debounce := getenv("BOARDCORE_WATCH_DEBOUNCE"); debounce != "" {
		if d, err := time.ParseDuration(debounce); err == nil {
			cfg.WatchDebounce = d
		}
	}
	if ttl := getenv("BOARDCORE_FINGERPRINT_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.FingerprintTTL = d
		}
	}
	if path := getenv("BOARDCORE_SEARCH_INDEX_PATH"); path != "" {
		cfg.SearchIndexPath = path
	}
	if level := getenv("BOARDCORE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "boardcore", "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "boardcore", "config.yaml")
}
