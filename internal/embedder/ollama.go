package embedder

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// OllamaProvider embeds texts through a local Ollama server using
// chromem-go's embedding function. Ollama embeds one text per request, so
// sub-batches are processed sequentially and batches fan out across workers.
type OllamaProvider struct {
	model   string
	embed   chromem.EmbeddingFunc
	batcher *batcher
}

// NewOllamaProvider creates an embedder for the Ollama API at cfg.BaseURL
// (which includes the /api suffix).
func NewOllamaProvider(cfg ProviderConfig) *OllamaProvider {
	cfg = cfg.withDefaults(DefaultOllamaModel, DefaultOllamaBaseURL)
	return newOllamaProvider(cfg, chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL))
}

func newOllamaProvider(cfg ProviderConfig, embed chromem.EmbeddingFunc) *OllamaProvider {
	o := &OllamaProvider{model: cfg.Model, embed: embed}
	o.batcher = &batcher{
		provider:  ProviderOllama,
		cache:     cfg.Cache,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		fetch: func(ctx context.Context, texts []string, _ string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i, text := range texts {
				vec, err := retryWithBackoff(ctx, cfg.Retry, func() ([]float32, error) {
					return o.embed(ctx, text)
				})
				if err != nil {
					return nil, fmt.Errorf("%w: ollama: %v", ErrProviderFailed, err)
				}
				vectors[i] = vec
			}
			return vectors, nil
		},
	}
	return o
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := o.batcher.generate(ctx, req.Texts, o.model)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOllama,
		Model:      o.model,
	}, nil
}

// Dimension is unknown until the model has produced a vector
func (o *OllamaProvider) Dimension() int {
	return 0
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	return nil
}
