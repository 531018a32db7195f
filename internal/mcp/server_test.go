package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semchunk/internal/chunker"
	"github.com/dshills/semchunk/internal/embedder"
	"github.com/dshills/semchunk/internal/indexer"
	"github.com/dshills/semchunk/internal/storage"
)

const prose = "The cat sat on the mat. The cat purred by the window. " +
	"Stock markets fell on Monday. Investors sold shares quickly. " +
	"Bake the bread for an hour. Let the bread cool before slicing."

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := chunker.New(embedder.NewLocalProvider(nil), nil, nil)
	idx := indexer.New(store, c, indexer.Config{Workers: 2, Provider: embedder.ProviderLocal, Model: embedder.DefaultLocalModel})

	s, err := NewServer(Config{
		Storage:          store,
		Chunker:          c,
		Indexer:          idx,
		Defaults:         chunker.DefaultOptions(),
		FixedWindowWords: 4,
		Provider:         embedder.ProviderLocal,
		Model:            embedder.DefaultLocalModel,
	})
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewServer(t *testing.T) {
	t.Run("requires components", func(t *testing.T) {
		_, err := NewServer(Config{Defaults: chunker.DefaultOptions()})
		assert.Error(t, err)
	})

	t.Run("rejects invalid defaults", func(t *testing.T) {
		store, err := storage.NewSQLiteStorage(":memory:")
		require.NoError(t, err)
		defer store.Close()
		c := chunker.New(embedder.NewLocalProvider(nil), nil, nil)

		_, err = NewServer(Config{
			Storage:  store,
			Chunker:  c,
			Indexer:  indexer.New(store, c, indexer.Config{}),
			Defaults: chunker.Options{BufferSize: 1, PercentileThreshold: 120, MinChunkSentences: 2},
		})
		assert.ErrorIs(t, err, chunker.ErrInvalidOptions)
	})

	t.Run("server has all required components", func(t *testing.T) {
		s := newTestServer(t)
		assert.NotNil(t, s.mcp, "MCP server should be initialized")
		assert.NotNil(t, s.storage)
		assert.NotNil(t, s.chunker)
		assert.NotNil(t, s.indexer)
		assert.NotNil(t, s.logger)
	})
}

func TestHandleChunkText(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	t.Run("chunks prose", func(t *testing.T) {
		result, err := s.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{
			"text": prose,
		}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, "sentence", out["segmenter"])
		assert.Equal(t, float64(6), out["unit_count"])

		chunks, ok := out["chunks"].([]interface{})
		require.True(t, ok)
		assert.Equal(t, out["chunk_count"], float64(len(chunks)))

		total := 0.0
		for _, c := range chunks {
			meta := c.(map[string]interface{})["metadata"].(map[string]interface{})
			total += meta["sentence_count"].(float64)
		}
		assert.Equal(t, float64(6), total)
	})

	t.Run("explicit options and segmenter", func(t *testing.T) {
		result, err := s.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{
			"text":                 prose,
			"segmenter":            "fixed",
			"buffer_size":          float64(0),
			"percentile_threshold": float64(100),
			"min_chunk_sentences":  float64(1),
		}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, "fixed", out["segmenter"])
		assert.Equal(t, float64(1), out["chunk_count"], "p100 never exceeds the maximum distance")
	})

	t.Run("subtitles are detected", func(t *testing.T) {
		srt := "1\n00:00:01,000 --> 00:00:02,000\nHello world\n\n" +
			"2\n00:00:02,000 --> 00:00:03,000\nFoo bar\n"
		result, err := s.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{"text": srt}))
		require.NoError(t, err)
		assert.Equal(t, "subtitle", decodeResult(t, result)["segmenter"])
	})

	t.Run("missing text", func(t *testing.T) {
		_, err := s.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("single sentence is too short", func(t *testing.T) {
		_, err := s.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{"text": "Just one."}))
		requireCode(t, err, ErrorCodeTextTooShort)
	})

	t.Run("unknown segmenter", func(t *testing.T) {
		_, err := s.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{
			"text":      prose,
			"segmenter": "paragraph",
		}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := s.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{
			"text":        prose,
			"buffer_size": float64(-1),
		}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("non-object arguments", func(t *testing.T) {
		req := callRequest("chunk_text", nil)
		req.Params.Arguments = "text"
		_, err := s.handleChunkText(ctx, req)
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandleChunkFile(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "prose.txt", prose)

	result, err := s.handleChunkFile(ctx, callRequest("chunk_file", map[string]interface{}{"path": path}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, path, out["path"])
	assert.Equal(t, "text", out["kind"])
	assert.Equal(t, float64(6), out["unit_count"])

	status, err := s.storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Documents, "chunk_file does not store anything")

	t.Run("relative path", func(t *testing.T) {
		_, err := s.handleChunkFile(ctx, callRequest("chunk_file", map[string]interface{}{"path": "prose.txt"}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := s.handleChunkFile(ctx, callRequest("chunk_file", map[string]interface{}{"path": filepath.Join(dir, "nope.txt")}))
		requireCode(t, err, ErrorCodePathNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := s.handleChunkFile(ctx, callRequest("chunk_file", map[string]interface{}{"path": dir}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		other := writeFile(t, dir, "main.go", "package main")
		_, err := s.handleChunkFile(ctx, callRequest("chunk_file", map[string]interface{}{"path": other}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestIndexThenQuery(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "prose.txt", prose)
	writeFile(t, dir, "bread.md", "# Bread\n\nKnead the dough well. Bake the bread until golden.")

	result, err := s.handleIndexPath(ctx, callRequest("index_path", map[string]interface{}{"path": dir}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, float64(2), out["documents_indexed"])
	assert.NotContains(t, out, "errors")

	t.Run("second run skips unchanged", func(t *testing.T) {
		result, err := s.handleIndexPath(ctx, callRequest("index_path", map[string]interface{}{"path": dir}))
		require.NoError(t, err)
		out := decodeResult(t, result)
		assert.Equal(t, float64(0), out["documents_indexed"])
		assert.Equal(t, float64(2), out["documents_skipped"])
	})

	t.Run("get_chunks", func(t *testing.T) {
		result, err := s.handleGetChunks(ctx, callRequest("get_chunks", map[string]interface{}{"path": path}))
		require.NoError(t, err)
		out := decodeResult(t, result)

		doc := out["document"].(map[string]interface{})
		assert.Equal(t, path, doc["path"])
		assert.Equal(t, float64(6), doc["unit_count"])
		assert.Contains(t, doc, "threshold")
		assert.Equal(t, doc["chunk_count"], float64(len(out["chunks"].([]interface{}))))
	})

	t.Run("get_chunks not indexed", func(t *testing.T) {
		_, err := s.handleGetChunks(ctx, callRequest("get_chunks", map[string]interface{}{"path": filepath.Join(dir, "other.txt")}))
		requireCode(t, err, ErrorCodeNotIndexed)
	})

	t.Run("search_chunks", func(t *testing.T) {
		result, err := s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{
			"query": "bread",
			"limit": float64(5),
		}))
		require.NoError(t, err)
		out := decodeResult(t, result)

		results := out["results"].([]interface{})
		require.NotEmpty(t, results)
		for _, r := range results {
			content := r.(map[string]interface{})["content"].(string)
			assert.Contains(t, strings.ToLower(content), "bread")
		}
	})

	t.Run("search_chunks validation", func(t *testing.T) {
		_, err := s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{}))
		requireCode(t, err, ErrorCodeEmptyQuery)

		_, err = s.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{
			"query": "bread",
			"limit": float64(500),
		}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("get_status", func(t *testing.T) {
		result, err := s.handleGetStatus(ctx, callRequest("get_status", nil))
		require.NoError(t, err)
		out := decodeResult(t, result)

		stats := out["statistics"].(map[string]interface{})
		assert.Equal(t, float64(2), stats["documents_count"])
		assert.Positive(t, stats["chunks_count"])
		assert.NotNil(t, stats["last_chunked_at"])

		emb := out["embedding"].(map[string]interface{})
		assert.Equal(t, embedder.ProviderLocal, emb["provider"])
		assert.Equal(t, false, out["indexing_in_progress"])
	})
}

func TestHandleIndexPath_InProgress(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	writeFile(t, dir, "prose.txt", prose)

	require.True(t, s.indexLock.TryAcquire())
	defer s.indexLock.Release()

	_, err := s.handleIndexPath(context.Background(), callRequest("index_path", map[string]interface{}{"path": dir}))
	requireCode(t, err, ErrorCodeIndexingInProgress)
}

func TestHandleIndexPath_InvalidPath(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexPath(ctx, callRequest("index_path", map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexPath(ctx, callRequest("index_path", map[string]interface{}{"path": "/definitely/not/here"}))
	requireCode(t, err, ErrorCodePathNotFound)

	assert.False(t, s.indexLock.Held(), "lock is not taken for rejected calls")
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"f": float64(3),
		"i": 7,
		"s": "x",
	}
	assert.Equal(t, 3, getIntDefault(args, "f", 1))
	assert.Equal(t, 7, getIntDefault(args, "i", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
	assert.Equal(t, 3.0, getFloatDefault(args, "f", 1))
	assert.Equal(t, 7.0, getFloatDefault(args, "i", 1))
	assert.Equal(t, "x", getStringDefault(args, "s", "y"))
	assert.Equal(t, "y", getStringDefault(args, "f", "y"))
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeNotIndexed, "document not indexed", nil)
	assert.Equal(t, "MCP error -32003: document not indexed", err.Error())
}
