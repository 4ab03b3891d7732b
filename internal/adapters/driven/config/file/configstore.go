// Package file loads pipeline configuration from a TOML file.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 200
	DefaultMaxChunks     = 50
	DefaultModel         = "text-embedding-3-small"
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
	DefaultThrottle      = 200 * time.Millisecond
	DefaultMinSimilarity = 0.7
	DefaultTopK          = 10
)

// ChunkingConfig controls how documents are split.
type ChunkingConfig struct {
	// Size is the target chunk length in characters.
	Size int `toml:"size"`

	// Overlap is the number of characters shared between
	// consecutive chunks.
	Overlap int `toml:"overlap"`

	// MaxChunks caps the number of chunks per document.
	MaxChunks int `toml:"max_chunks"`
}

// EmbeddingConfig controls the embedding provider.
type EmbeddingConfig struct {
	// Model is the embedding model name.
	Model string `toml:"model"`

	// Dimensions overrides the model's default vector size.
	Dimensions int `toml:"dimensions"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never lives in the config file.
	APIKeyEnv string `toml:"api_key_env"`

	// ThrottleMillis is the pause between embedding calls.
	ThrottleMillis int `toml:"throttle_millis"`
}

// Throttle returns the inter-call delay as a duration.
func (e EmbeddingConfig) Throttle() time.Duration {
	if e.ThrottleMillis <= 0 {
		return DefaultThrottle
	}
	return time.Duration(e.ThrottleMillis) * time.Millisecond
}

// APIKey resolves the provider key from the configured environment
// variable. Empty means the embedder is unavailable and the pipeline
// runs in degraded keyword-only mode.
func (e EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// SearchConfig controls retrieval defaults.
type SearchConfig struct {
	// MinSimilarity is the default relevance threshold.
	MinSimilarity float64 `toml:"min_similarity"`

	// TopK is the default result limit.
	TopK int `toml:"top_k"`
}

// PipelineConfig is the full configuration for the knowledge pipeline.
type PipelineConfig struct {
	// DataDir is where the database and blobs live.
	DataDir string `toml:"data_dir"`

	Chunking  ChunkingConfig  `toml:"chunking"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
}

// DefaultConfig returns a config with all defaults applied.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Chunking: ChunkingConfig{
			Size:      DefaultChunkSize,
			Overlap:   DefaultChunkOverlap,
			MaxChunks: DefaultMaxChunks,
		},
		Embedding: EmbeddingConfig{
			Model:     DefaultModel,
			APIKeyEnv: DefaultAPIKeyEnv,
		},
		Search: SearchConfig{
			MinSimilarity: DefaultMinSimilarity,
			TopK:          DefaultTopK,
		},
	}
}

// Load reads configuration from path, filling in defaults for any
// missing fields. A missing file yields the defaults.
func Load(path string) (PipelineConfig, error) {
	cfg := DefaultConfig()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".knowledge", "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to path with restricted permissions.
func Save(path string, cfg PipelineConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// applyDefaults backfills zero values after a partial file load.
func (c *PipelineConfig) applyDefaults() {
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = DefaultChunkSize
	}
	if c.Chunking.Overlap <= 0 {
		c.Chunking.Overlap = DefaultChunkOverlap
	}
	if c.Chunking.MaxChunks <= 0 {
		c.Chunking.MaxChunks = DefaultMaxChunks
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultModel
	}
	if c.Embedding.APIKeyEnv == "" {
		c.Embedding.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.Search.MinSimilarity <= 0 {
		c.Search.MinSimilarity = DefaultMinSimilarity
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = DefaultTopK
	}
}
