// Package config loads server settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	SnapshotPath string `yaml:"snapshot_path"`
	RedisURL     string `yaml:"redis_url"`
	RedisKey     string `yaml:"redis_key"`
	DatabaseURL  string `yaml:"database_url"`
	WebhookURL   string `yaml:"webhook_url"`

	AutosaveDelay time.Duration `yaml:"autosave_delay"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	DefaultInitialMs   int64 `yaml:"default_initial_ms"`
	DefaultIncrementMs int64 `yaml:"default_increment_ms"`
}

// Load builds the config in three layers: compiled defaults, the YAML
// file named by ARENA_CONFIG_FILE (if any), then environment variables.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		SnapshotPath:     "data/sessions.json",
		AutosaveDelay:    750 * time.Millisecond,
		SweepInterval:    time.Second,
		DefaultInitialMs: 300_000,
	}

	if path := strings.TrimSpace(os.Getenv("ARENA_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("ARENA_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_SNAPSHOT_PATH")); v != "" {
		cfg.SnapshotPath = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_REDIS_KEY")); v != "" {
		cfg.RedisKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_WEBHOOK_URL")); v != "" {
		cfg.WebhookURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_AUTOSAVE_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ARENA_AUTOSAVE_DELAY %q", v)
		}
		cfg.AutosaveDelay = d
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_SWEEP_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ARENA_SWEEP_INTERVAL %q", v)
		}
		cfg.SweepInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_DEFAULT_INITIAL_MS")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ARENA_DEFAULT_INITIAL_MS %q", v)
		}
		cfg.DefaultInitialMs = n
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_DEFAULT_INCREMENT_MS")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid ARENA_DEFAULT_INCREMENT_MS %q", v)
		}
		cfg.DefaultIncrementMs = n
	}

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if cfg.SnapshotPath == "" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("either snapshot_path or redis_url is required")
	}
	return cfg, nil
}
