package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv and DetectProvider
const (
	EnvProvider     = "SEMCHUNK_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider    string // jina, openai, ollama, local; empty auto-detects
	APIKey      string
	Model       string
	BaseURL     string
	CacheSize   int // 0 disables the cache
	BatchSize   int
	Workers     int
	MaxAttempts int // 1 disables retry
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	pc := ProviderConfig{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Cache:     cache,
	}
	if cfg.MaxAttempts > 0 {
		pc.Retry = DefaultRetryConfig()
		pc.Retry.MaxAttempts = cfg.MaxAttempts
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(pc)
	case ProviderOpenAI:
		return NewOpenAIProvider(pc)
	case ProviderOllama:
		return NewOllamaProvider(pc), nil
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. SEMCHUNK_EMBEDDING_PROVIDER (jina, openai, ollama, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	provider := DetectProvider()
	return New(Config{
		Provider:  provider,
		APIKey:    APIKeyFor(provider, os.Getenv(EnvJinaAPIKey), os.Getenv(EnvOpenAIAPIKey)),
		CacheSize: DefaultCacheSize,
	})
}

// DetectProvider returns the provider NewFromEnv would use
func DetectProvider() string {
	return ResolveProvider(os.Getenv(EnvProvider), os.Getenv(EnvJinaAPIKey), os.Getenv(EnvOpenAIAPIKey))
}

// ResolveProvider picks a provider from an explicit choice or, failing
// that, from whichever API key is present.
func ResolveProvider(explicit, jinaKey, openaiKey string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	if jinaKey != "" {
		return ProviderJina
	}
	if openaiKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

// APIKeyFor returns the key matching provider, empty for keyless providers
func APIKeyFor(provider, jinaKey, openaiKey string) string {
	switch provider {
	case ProviderJina:
		return jinaKey
	case ProviderOpenAI:
		return openaiKey
	default:
		return ""
	}
}
