// Package config loads service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Extractor ExtractorConfig `yaml:"extractor"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig configures the embedding store.
type StoreConfig struct {
	// Path is the bolt database file for the default file-backed store.
	Path string `yaml:"path"`
	// Dim is the fixed embedding dimension. One dimension per deployment;
	// mismatching vectors are rejected, never padded or truncated.
	Dim int `yaml:"dim"`
}

// DatabaseConfig configures the optional PostgreSQL backend. When URL is
// set, embeddings are stored in Postgres with pgvector instead of the
// bolt file.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// IndexConfig configures the similarity index.
type IndexConfig struct {
	// Backend selects "flat" (exact, default) or "hnsw" (approximate,
	// for large collections).
	Backend string `yaml:"backend"`
	// MinScore is the default similarity threshold for searches. The
	// 0.6 default is the empirical operating point for face matching.
	MinScore float64 `yaml:"min_score"`
}

// PipelineConfig configures event ingestion.
type PipelineConfig struct {
	// Path is the bolt database file for event and photo state.
	Path string `yaml:"path"`
	// DataDir is where uploaded photos and thumbnails are written.
	DataDir string `yaml:"data_dir"`
	// StuckAfter is how long an uncompleted event may sit without a new
	// photo write before it is reported as stuck.
	StuckAfter time.Duration `yaml:"stuck_after"`
	// RecentWithin is the cutoff for the recently-active report.
	RecentWithin time.Duration `yaml:"recent_within"`
	// MinFreeBytes is the storage guard floor: photo writes are refused
	// when free disk space falls below it.
	MinFreeBytes uint64 `yaml:"min_free_bytes"`
	// ThumbnailSize is the bounding box for upload-time thumbnails.
	ThumbnailSize int `yaml:"thumbnail_size"`
}

// ExtractorConfig points at the external face extraction service.
type ExtractorConfig struct {
	URL string `yaml:"url"`
}

// Load builds the configuration. If FACEFIND_CONFIG names a YAML file it
// is read first; environment variables override it; defaults fill the
// rest.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("FACEFIND_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "facefind-faces.db"
	}
	if cfg.Store.Dim == 0 {
		cfg.Store.Dim = 512
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "flat"
	}
	if cfg.Index.MinScore == 0 {
		cfg.Index.MinScore = 0.6
	}
	if cfg.Pipeline.Path == "" {
		cfg.Pipeline.Path = "facefind-events.db"
	}
	if cfg.Pipeline.DataDir == "" {
		cfg.Pipeline.DataDir = "data"
	}
	if cfg.Pipeline.StuckAfter == 0 {
		cfg.Pipeline.StuckAfter = 600 * time.Second
	}
	if cfg.Pipeline.RecentWithin == 0 {
		cfg.Pipeline.RecentWithin = 1800 * time.Second
	}
	if cfg.Pipeline.MinFreeBytes == 0 {
		cfg.Pipeline.MinFreeBytes = 1 << 30 // 1 GiB low-water mark
	}
	if cfg.Pipeline.ThumbnailSize == 0 {
		cfg.Pipeline.ThumbnailSize = 320
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEFIND_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := envInt("FACEFIND_PORT"); v > 0 {
		cfg.Server.Port = v
	}
	if v := os.Getenv("FACEFIND_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := envInt("FACEFIND_EMBEDDING_DIM"); v > 0 {
		cfg.Store.Dim = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := envInt("FACEFIND_DB_MAX_OPEN_CONNS"); v > 0 {
		cfg.Database.MaxOpenConns = v
	}
	if v := envInt("FACEFIND_DB_MAX_IDLE_CONNS"); v > 0 {
		cfg.Database.MaxIdleConns = v
	}
	if v := os.Getenv("FACEFIND_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("FACEFIND_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Index.MinScore = f
		}
	}
	if v := os.Getenv("FACEFIND_PIPELINE_PATH"); v != "" {
		cfg.Pipeline.Path = v
	}
	if v := os.Getenv("FACEFIND_DATA_DIR"); v != "" {
		cfg.Pipeline.DataDir = v
	}
	if v := envInt("FACEFIND_STUCK_AFTER_SECONDS"); v > 0 {
		cfg.Pipeline.StuckAfter = time.Duration(v) * time.Second
	}
	if v := envInt("FACEFIND_RECENT_WITHIN_SECONDS"); v > 0 {
		cfg.Pipeline.RecentWithin = time.Duration(v) * time.Second
	}
	if v := os.Getenv("FACEFIND_MIN_FREE_BYTES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			cfg.Pipeline.MinFreeBytes = n
		}
	}
	if v := envInt("FACEFIND_THUMBNAIL_SIZE"); v > 0 {
		cfg.Pipeline.ThumbnailSize = v
	}
	if v := os.Getenv("FACEFIND_EXTRACTOR_URL"); v != "" {
		cfg.Extractor.URL = v
	}
}

// envInt reads an environment variable as a positive integer, returning 0
// if unset or invalid.
func envInt(key string) int {
	s := os.Getenv(key)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return 0
}
