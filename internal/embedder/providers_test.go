package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer fakes an OpenAI-compatible /embeddings endpoint. Each
// text is embedded as [len(text), position-in-request].
type embeddingServer struct {
	*httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	batches  [][]string
	failures atomic.Int32 // remaining requests to fail with 500
	reverse  bool         // return data in reverse order
}

func newEmbeddingServer(t *testing.T) *embeddingServer {
	t.Helper()
	s := &embeddingServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if s.failures.Load() > 0 {
			s.failures.Add(-1)
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.batches = append(s.batches, req.Input)
		s.mu.Unlock()

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			data[i] = item{Index: i, Embedding: []float32{float32(len(text)), float32(i)}}
		}
		if s.reverse {
			for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
				data[i], data[j] = data[j], data[i]
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "data": data})
	}))
	t.Cleanup(s.Close)
	return s
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestHTTPProviders(t *testing.T) {
	constructors := map[string]func(ProviderConfig) (*HTTPProvider, error){
		ProviderJina:   NewJinaProvider,
		ProviderOpenAI: NewOpenAIProvider,
	}

	for name, newProvider := range constructors {
		t.Run(name, func(t *testing.T) {
			server := newEmbeddingServer(t)
			p, err := newProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL + "/", Retry: fastRetry(1)})
			require.NoError(t, err)
			defer func() { _ = p.Close() }()

			resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bbb"}})
			require.NoError(t, err)
			require.Len(t, resp.Embeddings, 2)
			assert.Equal(t, []float32{1, 0}, resp.Embeddings[0].Vector)
			assert.Equal(t, []float32{3, 1}, resp.Embeddings[1].Vector)
			assert.Equal(t, name, resp.Provider)
			assert.Equal(t, name, p.Provider())
			assert.Equal(t, int32(1), server.calls.Load())
		})
	}
}

func TestHTTPProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewJinaProvider(ProviderConfig{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = NewOpenAIProvider(ProviderConfig{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestHTTPProvider_OutOfOrderResponse(t *testing.T) {
	server := newEmbeddingServer(t)
	server.reverse = true

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry(1)})
	require.NoError(t, err)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bb", "ccc"}})
	require.NoError(t, err)
	for i, emb := range resp.Embeddings {
		assert.Equal(t, float32(i+1), emb.Vector[0])
	}
}

func TestHTTPProvider_SubBatchesPreserveOrder(t *testing.T) {
	server := newEmbeddingServer(t)
	p, err := NewJinaProvider(ProviderConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		BatchSize: 3,
		Workers:   3,
		Retry:     fastRetry(1),
	})
	require.NoError(t, err)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0) // length i+1
	}

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 10)
	for i, emb := range resp.Embeddings {
		assert.Equal(t, float32(i+1), emb.Vector[0], "embedding %d out of order", i)
	}

	assert.Equal(t, int32(4), server.calls.Load())
	for _, batch := range server.batches {
		assert.LessOrEqual(t, len(batch), 3)
	}
}

func TestHTTPProvider_Retry(t *testing.T) {
	t.Run("recovers after transient failure", func(t *testing.T) {
		server := newEmbeddingServer(t)
		server.failures.Store(2)

		p, err := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry(3)})
		require.NoError(t, err)

		resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
		require.NoError(t, err)
		assert.Len(t, resp.Embeddings, 1)
		assert.Equal(t, int32(3), server.calls.Load())
	})

	t.Run("single attempt disables retry", func(t *testing.T) {
		server := newEmbeddingServer(t)
		server.failures.Store(5)

		p, err := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry(1)})
		require.NoError(t, err)

		_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Contains(t, err.Error(), "api error 500")
		assert.Equal(t, int32(1), server.calls.Load())
	})
}

func TestHTTPProvider_Cache(t *testing.T) {
	server := newEmbeddingServer(t)
	cache := NewCache(10)
	p, err := NewJinaProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL, Cache: cache, Retry: fastRetry(1)})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
	require.NoError(t, err)

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"two", "three", "one"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, float32(3), resp.Embeddings[0].Vector[0])
	assert.Equal(t, float32(5), resp.Embeddings[1].Vector[0])
	assert.Equal(t, float32(3), resp.Embeddings[2].Vector[0])

	require.Len(t, server.batches, 2)
	assert.Equal(t, []string{"three"}, server.batches[1], "only cache misses reach the API")
}

func TestHTTPProvider_ContextCancellation(t *testing.T) {
	server := newEmbeddingServer(t)
	server.failures.Store(100)

	p, err := NewOpenAIProvider(ProviderConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   RetryConfig{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 1},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first success", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(ctx, fastRetry(3), func() (int, error) {
			calls++
			if calls < 2 {
				return 0, errors.New("boom")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(ctx, fastRetry(3), func() (int, error) {
			calls++
			return 0, fmt.Errorf("attempt %d", calls)
		})
		assert.EqualError(t, err, "attempt 3")
		assert.Equal(t, 3, calls)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_, _ = retryWithBackoff(ctx, RetryConfig{}, func() (int, error) {
			calls++
			return 0, errors.New("boom")
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		_, err := retryWithBackoff(cctx, fastRetry(5), func() (int, error) {
			calls++
			return 0, errors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestOllamaProvider(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	embed := func(_ context.Context, text string) ([]float32, error) {
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
		if text == "bad" {
			return nil, errors.New("model not loaded")
		}
		return []float32{float32(len(text))}, nil
	}

	cfg := ProviderConfig{BatchSize: 2, Workers: 2, Retry: fastRetry(1)}.withDefaults(DefaultOllamaModel, DefaultOllamaBaseURL)

	t.Run("embeds each text in order", func(t *testing.T) {
		p := newOllamaProvider(cfg, embed)
		resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bb", "ccc", "dddd", "eeeee"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 5)
		for i, emb := range resp.Embeddings {
			assert.Equal(t, float32(i+1), emb.Vector[0])
			assert.Equal(t, ProviderOllama, emb.Provider)
		}
		assert.Equal(t, DefaultOllamaModel, p.Model())
		assert.Equal(t, 0, p.Dimension())
	})

	t.Run("wraps failures", func(t *testing.T) {
		p := newOllamaProvider(cfg, embed)
		_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"ok", "bad"}})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("constructor applies defaults", func(t *testing.T) {
		p := NewOllamaProvider(ProviderConfig{})
		assert.Equal(t, DefaultOllamaModel, p.Model())
		assert.Equal(t, ProviderOllama, p.Provider())
		assert.NoError(t, p.Close())
	})
}
