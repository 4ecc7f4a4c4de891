package config

import "os"

// Environment variables consulted when the embedding API key is not in the file.
const (
	EnvOpenAIKey    = "VECBRIDGE_OPENAI_API_KEY"
	envOpenAIKeyStd = "OPENAI_API_KEY"
)

// ApplyDefaults sets default values for any zero values in cfg.
// Backend tuning knobs are left unset so the engine picks its own defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/vecbridge/data/db/documents.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/vecbridge/data/index"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.APIKey == "" {
		if key := os.Getenv(EnvOpenAIKey); key != "" {
			cfg.Embedding.APIKey = key
		} else {
			cfg.Embedding.APIKey = os.Getenv(envOpenAIKeyStd)
		}
	}
	if cfg.Watch.ChunkSize == 0 {
		cfg.Watch.ChunkSize = 512
	}
	if cfg.Watch.ChunkOverlap == 0 {
		cfg.Watch.ChunkOverlap = 50
	}
	if cfg.ANN.Backend == "" {
		cfg.ANN.Backend = "memory"
	}
	// The vector width follows the embedding model unless set explicitly.
	if cfg.ANN.Dimensions == 0 {
		cfg.ANN.Dimensions = cfg.Embedding.Dimensions
	}
	if cfg.ANN.Metric == "" {
		cfg.ANN.Metric = "cosine"
	}
	if cfg.ANN.Qdrant.Host == "" {
		cfg.ANN.Qdrant.Host = "localhost"
	}
	if cfg.ANN.Qdrant.Port == 0 {
		cfg.ANN.Qdrant.Port = 6334
	}
	if cfg.ANN.Qdrant.Collection == "" {
		cfg.ANN.Qdrant.Collection = "embeddings"
	}
}
