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
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Dim != 512 {
		t.Errorf("default dimension = %d, want 512", cfg.Store.Dim)
	}
	if cfg.Index.Backend != "flat" {
		t.Errorf("default index backend = %q, want flat", cfg.Index.Backend)
	}
	if cfg.Index.MinScore != 0.6 {
		t.Errorf("default min score = %f, want 0.6", cfg.Index.MinScore)
	}
	if cfg.Pipeline.StuckAfter != 600*time.Second {
		t.Errorf("default stuck threshold = %s, want 600s", cfg.Pipeline.StuckAfter)
	}
	if cfg.Pipeline.RecentWithin != 1800*time.Second {
		t.Errorf("default recent threshold = %s, want 1800s", cfg.Pipeline.RecentWithin)
	}
	if cfg.Pipeline.MinFreeBytes != 1<<30 {
		t.Errorf("default storage floor = %d, want 1 GiB", cfg.Pipeline.MinFreeBytes)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACEFIND_PORT", "9000")
	t.Setenv("FACEFIND_EMBEDDING_DIM", "1024")
	t.Setenv("FACEFIND_INDEX_BACKEND", "hnsw")
	t.Setenv("FACEFIND_MIN_SCORE", "0.75")
	t.Setenv("FACEFIND_STUCK_AFTER_SECONDS", "300")
	t.Setenv("FACEFIND_MIN_FREE_BYTES", "2147483648")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Store.Dim != 1024 {
		t.Errorf("dimension = %d, want 1024", cfg.Store.Dim)
	}
	if cfg.Index.Backend != "hnsw" {
		t.Errorf("index backend = %q, want hnsw", cfg.Index.Backend)
	}
	if cfg.Index.MinScore != 0.75 {
		t.Errorf("min score = %f, want 0.75", cfg.Index.MinScore)
	}
	if cfg.Pipeline.StuckAfter != 300*time.Second {
		t.Errorf("stuck threshold = %s, want 300s", cfg.Pipeline.StuckAfter)
	}
	if cfg.Pipeline.MinFreeBytes != 2147483648 {
		t.Errorf("storage floor = %d, want 2 GiB", cfg.Pipeline.MinFreeBytes)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	yamlContent := `
server:
  host: 127.0.0.1
  port: 8090
store:
  dim: 128
index:
  backend: hnsw
  min_score: 0.5
pipeline:
  data_dir: /var/lib/facefind
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("FACEFIND_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8090 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Store.Dim != 128 {
		t.Errorf("dimension = %d, want 128", cfg.Store.Dim)
	}
	if cfg.Pipeline.DataDir != "/var/lib/facefind" {
		t.Errorf("data dir = %q", cfg.Pipeline.DataDir)
	}
	// Unset fields still fall back to defaults.
	if cfg.Pipeline.StuckAfter != 600*time.Second {
		t.Errorf("stuck threshold = %s, want default 600s", cfg.Pipeline.StuckAfter)
	}
}

func TestLoadEnvBeatsYAML(t *testing.T) {
	yamlContent := "server:\n  port: 8090\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("FACEFIND_CONFIG", path)
	t.Setenv("FACEFIND_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, environment should beat the file", cfg.Server.Port)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("FACEFIND_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("Load with missing config file succeeded")
	}
}
