// Package config loads semchunk settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/dshills/semchunk/internal/chunker"
	"github.com/dshills/semchunk/internal/embedder"
	"github.com/dshills/semchunk/internal/logging"
	"github.com/dshills/semchunk/internal/segmenter"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every tunable of the CLI and MCP server
type Config struct {
	DBPath string `env:"SEMCHUNK_DB_PATH" envDefault:".semchunk/semchunk.db"`

	BufferSize          int     `env:"SEMCHUNK_BUFFER_SIZE" envDefault:"1"`
	PercentileThreshold float64 `env:"SEMCHUNK_PERCENTILE_THRESHOLD" envDefault:"80"`
	MinChunkSentences   int     `env:"SEMCHUNK_MIN_CHUNK_SENTENCES" envDefault:"2"`
	Segmenter           string  `env:"SEMCHUNK_SEGMENTER" envDefault:"auto"`
	FixedWindowWords    int     `env:"SEMCHUNK_FIXED_WINDOW_WORDS" envDefault:"40"`

	EmbeddingProvider    string `env:"SEMCHUNK_EMBEDDING_PROVIDER"`
	EmbeddingModel       string `env:"SEMCHUNK_EMBEDDING_MODEL"`
	EmbeddingBaseURL     string `env:"SEMCHUNK_EMBEDDING_BASE_URL"`
	EmbeddingCacheSize   int    `env:"SEMCHUNK_EMBEDDING_CACHE_SIZE" envDefault:"10000"`
	EmbeddingBatchSize   int    `env:"SEMCHUNK_EMBEDDING_BATCH_SIZE" envDefault:"50"`
	EmbeddingMaxAttempts int    `env:"SEMCHUNK_EMBEDDING_MAX_ATTEMPTS" envDefault:"3"`
	OllamaURL            string `env:"SEMCHUNK_OLLAMA_URL" envDefault:"http://localhost:11434"`
	JinaAPIKey           string `env:"JINA_API_KEY"`
	OpenAIAPIKey         string `env:"OPENAI_API_KEY"`

	LogLevel string `env:"SEMCHUNK_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"SEMCHUNK_LOG_JSON" envDefault:"false"`

	// Workers bounds concurrent documents during indexing, 0 means NumCPU
	Workers int `env:"SEMCHUNK_WORKERS" envDefault:"0"`
}

// Load reads envFile (or ./.env when envFile is empty and present) and
// then parses the process environment. Variables already set in the
// environment win over .env entries.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	return Parse(env.Options{})
}

// Parse builds a Config from the environment described by opts and
// validates it
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and names
func (c *Config) Validate() error {
	if err := c.ChunkOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.FixedWindowWords < 1 {
		return fmt.Errorf("%w: fixed window words must be positive", ErrInvalidConfig)
	}
	if _, err := segmenter.ByName(c.Segmenter, c.FixedWindowWords); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Provider() {
	case embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderOllama, embedder.ProviderLocal:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.EmbeddingProvider)
	}
	if c.EmbeddingCacheSize < 0 {
		return fmt.Errorf("%w: embedding cache size must not be negative", ErrInvalidConfig)
	}
	if c.EmbeddingBatchSize < 1 || c.EmbeddingBatchSize > embedder.MaxBatchSize {
		return fmt.Errorf("%w: embedding batch size must be in [1, %d]", ErrInvalidConfig, embedder.MaxBatchSize)
	}
	if c.EmbeddingMaxAttempts < 1 {
		return fmt.Errorf("%w: embedding max attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: database path is empty", ErrInvalidConfig)
	}
	return nil
}

// ChunkOptions returns the chunking defaults for tool calls
func (c *Config) ChunkOptions() chunker.Options {
	return chunker.Options{
		BufferSize:          c.BufferSize,
		PercentileThreshold: c.PercentileThreshold,
		MinChunkSentences:   c.MinChunkSentences,
	}
}

// Provider resolves the embedding provider, auto-detecting from API keys
// when none is named
func (c *Config) Provider() string {
	return embedder.ResolveProvider(c.EmbeddingProvider, c.JinaAPIKey, c.OpenAIAPIKey)
}

// EmbedderConfig maps the embedding settings onto embedder.Config
func (c *Config) EmbedderConfig() embedder.Config {
	provider := c.Provider()
	baseURL := c.EmbeddingBaseURL
	if baseURL == "" && provider == embedder.ProviderOllama {
		baseURL = strings.TrimRight(c.OllamaURL, "/") + "/api"
	}
	return embedder.Config{
		Provider:    provider,
		APIKey:      embedder.APIKeyFor(provider, c.JinaAPIKey, c.OpenAIAPIKey),
		Model:       c.EmbeddingModel,
		BaseURL:     baseURL,
		CacheSize:   c.EmbeddingCacheSize,
		BatchSize:   c.EmbeddingBatchSize,
		MaxAttempts: c.EmbeddingMaxAttempts,
	}
}

// NewSegmenter builds the configured segmenter
func (c *Config) NewSegmenter() (segmenter.Segmenter, error) {
	return segmenter.ByName(c.Segmenter, c.FixedWindowWords)
}

// LoggingConfig maps the log settings onto logging.Config
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: logging.ParseLevel(c.LogLevel), JSON: c.LogJSON}
}

// WorkerCount returns Workers, or NumCPU when unset
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
