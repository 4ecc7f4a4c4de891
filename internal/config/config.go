// Package config provides configuration loading and structs for vecbridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	ANN       ANNConfig       `yaml:"ann"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the document database and file-backed indices.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
}

// EmbeddingConfig selects and configures the embedding model client.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	CacheSize  int    `yaml:"cache_size"`
}

// WatchConfig lists directories whose document files are kept in sync with
// the index while the server runs. Extracted files longer than ChunkSize words
// are split into windows overlapping by ChunkOverlap words.
type WatchConfig struct {
	Directories  []string `yaml:"directories"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
}

// ANNConfig holds engine-agnostic settings plus one namespaced block per backend.
type ANNConfig struct {
	Backend    string       `yaml:"backend"`
	Dimensions int          `yaml:"dimensions"`
	Metric     string       `yaml:"metric"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
	HNSW       HNSWConfig   `yaml:"hnsw"`
}

// QdrantConfig holds connection and tuning settings for a Qdrant server.
type QdrantConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	UseTLS     bool          `yaml:"use_tls"`
	Timeout    time.Duration `yaml:"timeout"`
	Collection string        `yaml:"collection"`
	HNSW       QdrantHNSW    `yaml:"hnsw"`
}

// QdrantHNSW holds graph tuning. Nil means "use the engine default".
type QdrantHNSW struct {
	M                 *uint64 `yaml:"m"`
	EfConstruct       *uint64 `yaml:"ef_construct"`
	FullScanThreshold *uint64 `yaml:"full_scan_threshold"`
	EfSearch          *uint64 `yaml:"ef_search"`
}

// HNSWConfig holds settings for the in-process HNSW graph.
type HNSWConfig struct {
	M        int     `yaml:"m"`
	Ml       float64 `yaml:"ml"`
	EfSearch int     `yaml:"ef_search"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	for i, dir := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(dir, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
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
