// Package embedder turns ordered batches of text into ordered batches of
// vectors for boundary detection.
//
// Every provider implements Embedder. A single GenerateBatch call may be
// split into sub-batches that run concurrently; results always come back
// in request order, one embedding per text.
//
// # Providers
//
//   - jina: Jina AI embeddings API (JINA_API_KEY)
//   - openai: OpenAI embeddings API (OPENAI_API_KEY)
//   - ollama: a local Ollama server, called through chromem-go
//   - local: offline feature-hashing vectors, no network
//
// # Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 1000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{"First window.", "Second window."},
//	})
//
// # Caching
//
// Embeddings are cached in an LRU keyed by SHA-256 of model and text.
// Cached vectors are copied on read.
//
// # Retries
//
// Remote calls retry with exponential backoff (100ms, doubling, capped at
// 5s). MaxAttempts of 1 disables retry. Errors surface wrapped in
// ErrProviderFailed.
package embedder
