// Package config provides configuration loading and structs for the UniRAG server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Models    ModelsConfig    `yaml:"models"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the registry database, vector index,
// ingestion cache, and the watched document drop directory.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	CacheDir        string `yaml:"cache_dir"`
	DataDir         string `yaml:"data_dir"`
}

// ModelsConfig holds the model service endpoint and model identifiers.
// String fields support ${ENV} expansion so hosts and model names can come
// from the environment (a .env file is loaded by the CLI before parsing).
type ModelsConfig struct {
	BaseURL        string `yaml:"base_url"`
	GenerateModel  string `yaml:"generate_model"`
	EmbedModel     string `yaml:"embed_model"`
	VisionModel    string `yaml:"vision_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	EmbedCacheSize int    `yaml:"embed_cache_size"`
}

// IngestConfig holds chunking and vision-analysis settings.
type IngestConfig struct {
	ChunkSize    int   `yaml:"chunk_size"`
	ChunkOverlap int   `yaml:"chunk_overlap"`
	EnableVision *bool `yaml:"enable_vision"`
	PageWorkers  int   `yaml:"page_workers"`
	RasterDPI    int   `yaml:"raster_dpi"`
}

// VisionEnabled returns whether vision analysis runs; defaults to true when unset.
func (c *IngestConfig) VisionEnabled() bool {
	if c.EnableVision != nil {
		return *c.EnableVision
	}
	return true
}

// RetrievalConfig holds MMR retrieval settings. Lambda is a pointer so that
// an explicit 0 (pure diversity) is distinguishable from "unset".
type RetrievalConfig struct {
	K             int      `yaml:"k"`
	FetchPoolSize int      `yaml:"fetch_pool_size"`
	Lambda        *float64 `yaml:"lambda"`
}

// LambdaValue returns the configured lambda; defaults to 0.6 when unset.
func (c *RetrievalConfig) LambdaValue() float64 {
	if c.Lambda != nil {
		return *c.Lambda
	}
	return 0.6
}

// Load reads and parses the config file at path, expands environment
// references and paths, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.CacheDir = expandPath(cfg.Storage.CacheDir, configDir)
	if cfg.Storage.DataDir != "" {
		cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects invalid settings outright. Bad configuration fails at
// startup rather than being silently clamped at use sites.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("ingest.chunk_overlap cannot be negative, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Ingest.PageWorkers <= 0 {
		return fmt.Errorf("ingest.page_workers must be positive, got %d", c.Ingest.PageWorkers)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.FetchPoolSize < c.Retrieval.K {
		return fmt.Errorf("retrieval.fetch_pool_size (%d) must be at least k (%d)",
			c.Retrieval.FetchPoolSize, c.Retrieval.K)
	}
	if c.Retrieval.Lambda != nil && (*c.Retrieval.Lambda < 0 || *c.Retrieval.Lambda > 1) {
		return fmt.Errorf("retrieval.lambda must be within [0, 1], got %g", *c.Retrieval.Lambda)
	}
	if c.Models.MaxRetries < 0 {
		return fmt.Errorf("models.max_retries cannot be negative, got %d", c.Models.MaxRetries)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
