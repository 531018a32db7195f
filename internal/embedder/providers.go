package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "local-hashing"

	// Default endpoints
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOllamaBaseURL = "http://localhost:11434/api"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100
	DefaultWorkers   = 4

	DefaultCacheSize   = 10000
	DefaultMaxAttempts = 3
	DefaultHTTPTimeout = 30 * time.Second
)

// ProviderConfig configures a single provider instance
type ProviderConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	BatchSize int // texts per upstream request, capped at MaxBatchSize
	Workers   int // concurrent upstream requests
	Timeout   time.Duration
	Retry     RetryConfig
	Cache     *Cache // nil disables caching
}

func (c ProviderConfig) withDefaults(model, baseURL string) ProviderConfig {
	if c.Model == "" {
		c.Model = model
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	c.BatchSize = min(c.BatchSize, MaxBatchSize)
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultHTTPTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = DefaultRetryConfig()
	}
	return c
}

// fetchFunc embeds one sub-batch and returns vectors in input order
type fetchFunc func(ctx context.Context, texts []string, model string) ([][]float32, error)

// batcher serves cache hits and fans the remaining texts out to fetch in
// sub-batches, reassembling the results in request order.
type batcher struct {
	provider  string
	cache     *Cache
	batchSize int
	workers   int
	fetch     fetchFunc
}

func (b *batcher) generate(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	embeddings := make([]*Embedding, len(texts))

	var missing []int
	for i, text := range texts {
		if b.cache != nil {
			if emb, ok := b.cache.Get(ComputeHash(model, text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for start := 0; start < len(missing); start += b.batchSize {
		positions := missing[start:min(start+b.batchSize, len(missing))]
		g.Go(func() error {
			batch := make([]string, len(positions))
			for j, pos := range positions {
				batch[j] = texts[pos]
			}

			vectors, err := b.fetch(gctx, batch, model)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vectors), len(batch))
			}

			for j, pos := range positions {
				hash := ComputeHash(model, texts[pos])
				emb := &Embedding{
					Vector:    vectors[j],
					Dimension: len(vectors[j]),
					Provider:  b.provider,
					Model:     model,
					Hash:      hash,
				}
				embeddings[pos] = emb
				if b.cache != nil {
					b.cache.Set(hash, emb)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// HTTPProvider implements Embedder against an OpenAI-compatible
// /embeddings endpoint. Jina and OpenAI share this wire format.
type HTTPProvider struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	retry      RetryConfig
	httpClient *http.Client
	batcher    *batcher
}

// NewJinaProvider creates an embedder backed by the Jina AI API
func NewJinaProvider(cfg ProviderConfig) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderJina, EnvJinaAPIKey, JinaDimension,
		cfg.withDefaults(DefaultJinaModel, DefaultJinaBaseURL))
}

// NewOpenAIProvider creates an embedder backed by the OpenAI API
func NewOpenAIProvider(cfg ProviderConfig) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderOpenAI, EnvOpenAIAPIKey, OpenAIDimension,
		cfg.withDefaults(DefaultOpenAIModel, DefaultOpenAIBaseURL))
}

func newHTTPProvider(name, keyEnv string, dimension int, cfg ProviderConfig) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, keyEnv)
	}

	p := &HTTPProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		dimension:  dimension,
		retry:      cfg.Retry,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	p.batcher = &batcher{
		provider:  name,
		cache:     cfg.Cache,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		fetch:     p.fetchWithRetry,
	}
	return p, nil
}

func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings, err := p.batcher.generate(ctx, req.Texts, model)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *HTTPProvider) fetchWithRetry(ctx context.Context, texts []string, model string) ([][]float32, error) {
	vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
		return p.callAPI(ctx, texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, max(p.retry.MaxAttempts, 1), err)
	}
	return vectors, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	// Entries carry their input index and may arrive out of order
	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) || vectors[data.Index] != nil {
			return nil, fmt.Errorf("invalid embedding index %d", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

func (p *HTTPProvider) Provider() string {
	return p.name
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline with feature hashing over lowercase
// word tokens. Texts sharing vocabulary land close together, which is
// enough to exercise boundary detection without a model.
type LocalProvider struct {
	model   string
	batcher *batcher
}

// NewLocalProvider creates the offline hashing embedder
func NewLocalProvider(cache *Cache) *LocalProvider {
	l := &LocalProvider{model: DefaultLocalModel}
	l.batcher = &batcher{
		provider:  ProviderLocal,
		cache:     cache,
		batchSize: MaxBatchSize,
		workers:   1,
		fetch: func(_ context.Context, texts []string, _ string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i, text := range texts {
				vectors[i] = HashVector(text, LocalDimension)
			}
			return vectors, nil
		},
	}
	return l
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := l.batcher.generate(ctx, req.Texts, l.model)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// HashVector builds a unit-length bag-of-words vector of the given
// dimension. Text without word characters yields the zero vector.
func HashVector(text string, dimension int) []float32 {
	vector := make([]float32, dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum32()
		bucket := int(sum % uint32(dimension))
		if sum&(1<<31) != 0 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}

	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
