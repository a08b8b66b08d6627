package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.AutosaveDelay != 750*time.Millisecond || cfg.SweepInterval != time.Second {
		t.Fatalf("unexpected timings: %+v", cfg)
	}
	if cfg.DefaultInitialMs != 300_000 || cfg.DefaultIncrementMs != 0 {
		t.Fatalf("unexpected clock defaults: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	file := []byte("listen_addr: \":9000\"\nsnapshot_path: from-file.json\ndefault_initial_ms: 60000\n")
	if err := os.WriteFile(path, file, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ARENA_CONFIG_FILE", path)
	t.Setenv("ARENA_SNAPSHOT_PATH", "from-env.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("file value lost: %q", cfg.ListenAddr)
	}
	if cfg.SnapshotPath != "from-env.json" {
		t.Fatalf("env must win over file, got %q", cfg.SnapshotPath)
	}
	if cfg.DefaultInitialMs != 60_000 {
		t.Fatalf("file clock default lost: %d", cfg.DefaultInitialMs)
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	t.Setenv("ARENA_AUTOSAVE_DELAY", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}
