// Package config loads and validates histchat configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete histchat configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig configures where indexed data lives.
type PathsConfig struct {
	// DataDir is the base directory for all engine data.
	// Defaults to ~/.histchat.
	DataDir string `yaml:"data_dir"`
	// DatabasePath is the SQLite metadata database. Defaults to
	// <data_dir>/history.db.
	DatabasePath string `yaml:"database_path"`
	// VectorIndexPath is the HNSW vector index file. Defaults to
	// <data_dir>/vectors.hnsw. The index may not exist yet (cold start);
	// search degrades to keyword-only until it is built.
	VectorIndexPath string `yaml:"vector_index_path"`
}

// SearchConfig configures hybrid search parameters.
type SearchConfig struct {
	// TopK is the default number of search results.
	TopK int `yaml:"top_k"`
	// MaxContextChunks is the default context window size for assembly.
	MaxContextChunks int `yaml:"max_context_chunks"`
	// VectorWeight weights the vector similarity in the combined score.
	VectorWeight float64 `yaml:"vector_weight"`
	// KeywordWeight weights the keyword overlap in the combined score.
	KeywordWeight float64 `yaml:"keyword_weight"`
	// CacheResults enables the query-result cache. Cached entries are keyed
	// on the raw query text and are NOT invalidated when the vector index is
	// rebuilt; clear the search_cache table after a rebuild if staleness
	// matters more than latency.
	CacheResults bool `yaml:"cache_results"`
}

// RerankConfig configures the optional cross-encoder reranking stage.
type RerankConfig struct {
	// Enabled turns on cross-encoder reranking. When the relevance model is
	// unavailable the stage degrades to a keyword+freshness blend instead of
	// failing.
	Enabled bool `yaml:"enabled"`
	// MaxChunksPerURL caps how many chunks a single page may contribute to
	// the rerank candidate set.
	MaxChunksPerURL int `yaml:"max_chunks_per_url"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Dimensions is the embedding dimension. Must match the vector index.
	Dimensions int `yaml:"dimensions"`
	// CacheSize is the number of query embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	FilePath      string `yaml:"file_path"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr"`
}

// Default returns the default configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dataDir := filepath.Join(home, ".histchat")

	return Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:         dataDir,
			DatabasePath:    filepath.Join(dataDir, "history.db"),
			VectorIndexPath: filepath.Join(dataDir, "vectors.hnsw"),
		},
		Search: SearchConfig{
			TopK:             10,
			MaxContextChunks: 5,
			VectorWeight:     0.6,
			KeywordWeight:    0.3,
			CacheResults:     true,
		},
		Rerank: RerankConfig{
			Enabled:         false,
			MaxChunksPerURL: 2,
		},
		Embeddings: EmbeddingsConfig{
			Dimensions: 256,
			CacheSize:  1000,
		},
		Logging: LoggingConfig{
			Level:         "info",
			FilePath:      filepath.Join(dataDir, "logs", "histchat.log"),
			MaxSizeMB:     10,
			MaxFiles:      5,
			WriteToStderr: false,
		},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist, then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides configuration from HISTCHAT_* environment variables.
// Env vars take priority over both file values and defaults.
func (c *Config) applyEnv() {
	if v := os.Getenv("HISTCHAT_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
		c.Paths.DatabasePath = filepath.Join(v, "history.db")
		c.Paths.VectorIndexPath = filepath.Join(v, "vectors.hnsw")
	}
	if v := os.Getenv("HISTCHAT_DB_PATH"); v != "" {
		c.Paths.DatabasePath = v
	}
	if v := os.Getenv("HISTCHAT_VECTOR_INDEX_PATH"); v != "" {
		c.Paths.VectorIndexPath = v
	}
	if v := os.Getenv("HISTCHAT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("HISTCHAT_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("HISTCHAT_KEYWORD_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.KeywordWeight = f
		}
	}
	if v := os.Getenv("HISTCHAT_CACHE_RESULTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Search.CacheResults = b
		}
	}
	if v := os.Getenv("HISTCHAT_RERANK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Rerank.Enabled = b
		}
	}
	if v := os.Getenv("HISTCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.MaxContextChunks <= 0 {
		return fmt.Errorf("search.max_context_chunks must be positive, got %d", c.Search.MaxContextChunks)
	}
	if c.Search.VectorWeight < 0 || c.Search.VectorWeight > 1 {
		return fmt.Errorf("search.vector_weight must be in [0,1], got %v", c.Search.VectorWeight)
	}
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("search.keyword_weight must be in [0,1], got %v", c.Search.KeywordWeight)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Rerank.MaxChunksPerURL <= 0 {
		return fmt.Errorf("rerank.max_chunks_per_url must be positive, got %d", c.Rerank.MaxChunksPerURL)
	}
	return nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".histchat", "config.yaml")
}
