package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/unirag.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "./data/vectors"
	}
	if cfg.Storage.CacheDir == "" {
		cfg.Storage.CacheDir = "./data/cache"
	}
	if cfg.Models.BaseURL == "" {
		cfg.Models.BaseURL = "http://localhost:11434"
	}
	if cfg.Models.GenerateModel == "" {
		cfg.Models.GenerateModel = "gemma3:4b"
	}
	if cfg.Models.EmbedModel == "" {
		cfg.Models.EmbedModel = "nomic-embed-text"
	}
	if cfg.Models.VisionModel == "" {
		cfg.Models.VisionModel = "llama3.2-vision"
	}
	if cfg.Models.TimeoutSeconds == 0 {
		cfg.Models.TimeoutSeconds = 60
	}
	if cfg.Models.MaxRetries == 0 {
		cfg.Models.MaxRetries = 3
	}
	if cfg.Models.EmbedCacheSize == 0 {
		cfg.Models.EmbedCacheSize = 4096
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 600
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 150
	}
	if cfg.Ingest.PageWorkers == 0 {
		cfg.Ingest.PageWorkers = 4
	}
	if cfg.Ingest.RasterDPI == 0 {
		cfg.Ingest.RasterDPI = 150
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 8
	}
	if cfg.Retrieval.FetchPoolSize == 0 {
		cfg.Retrieval.FetchPoolSize = 20
	}
	if cfg.Retrieval.Lambda == nil {
		lambda := 0.6
		cfg.Retrieval.Lambda = &lambda
	}
}
