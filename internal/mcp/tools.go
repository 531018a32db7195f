package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semchunk/internal/chunker"
	"github.com/dshills/semchunk/internal/loader"
	"github.com/dshills/semchunk/internal/segmenter"
	"github.com/dshills/semchunk/internal/storage"
	"github.com/dshills/semchunk/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Specified path does not exist
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Document not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeTextTooShort       = -32005 // Fewer than two units to compare
)

// maxReportedErrors caps the per-file errors echoed back by index_path
const maxReportedErrors = 5

// handleChunkText handles the chunk_text tool invocation
func (s *Server) handleChunkText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	text, ok := args["text"].(string)
	if !ok || text == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or empty",
		})
	}

	opts, err := s.parseOptions(args)
	if err != nil {
		return nil, err
	}

	c := s.chunker
	if name := getStringDefault(args, "segmenter", ""); name != "" {
		seg, err := segmenter.ByName(name, s.fixedWords)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid segmenter", map[string]interface{}{
				"param":   "segmenter",
				"value":   name,
				"allowed": []string{segmenter.NameAuto, segmenter.NameSentence, segmenter.NameSubtitle, segmenter.NameFixed},
			})
		}
		c = c.WithSegmenter(seg)
	}

	res, err := c.ChunkText(ctx, text, opts)
	if err != nil {
		return nil, chunkingError(err)
	}

	response := map[string]interface{}{
		"segmenter":     resolvedName(c.Segmenter(), text),
		"unit_count":    len(res.Units),
		"chunk_count":   len(res.Chunks),
		"threshold":     res.Threshold,
		"shift_indices": res.ShiftIndices,
		"chunks":        res.Chunks,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleChunkFile handles the chunk_file tool invocation
func (s *Server) handleChunkFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	if err := validateFile(path); err != nil {
		return nil, pathError(err)
	}

	opts, err := s.parseOptions(args)
	if err != nil {
		return nil, err
	}

	res, err := s.indexer.ChunkFile(ctx, path, opts)
	if err != nil {
		return nil, chunkingError(err)
	}

	response := map[string]interface{}{
		"path":        res.Document.Path,
		"kind":        string(res.Document.Kind),
		"segmenter":   res.Segmenter,
		"unit_count":  res.Units,
		"chunk_count": len(res.Chunks),
		"threshold":   res.Threshold,
		"chunks":      res.Chunks,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexPath handles the index_path tool invocation
func (s *Server) handleIndexPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	if err := validatePath(path); err != nil {
		return nil, pathError(err)
	}

	opts, err := s.parseOptions(args)
	if err != nil {
		return nil, err
	}

	if !s.indexLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	defer s.indexLock.Release()

	stats, err := s.indexer.IndexPath(ctx, path, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":           true,
		"documents_indexed": stats.DocumentsIndexed,
		"documents_skipped": stats.DocumentsSkipped,
		"documents_failed":  stats.DocumentsFailed,
		"documents_removed": stats.DocumentsRemoved,
		"units_processed":   stats.UnitsProcessed,
		"chunks_created":    stats.ChunksCreated,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if errorCount := len(stats.ErrorMessages); errorCount > 0 {
		if errorCount > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetChunks handles the get_chunks tool invocation
func (s *Server) handleGetChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	doc, err := s.storage.GetDocument(ctx, filepath.Clean(path))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "document not indexed", map[string]interface{}{
			"path":    path,
			"message": "Use the index_path tool to index this document.",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get document", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stored, err := s.storage.ListChunks(ctx, doc.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list chunks", map[string]interface{}{
			"error": err.Error(),
		})
	}

	chunks := make([]types.Chunk, len(stored))
	for i, sc := range stored {
		chunks[i] = sc.Chunk
	}

	response := map[string]interface{}{
		"document": documentSummary(doc),
		"chunks":   chunks,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchChunks handles the search_chunks tool invocation
func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	hits, err := s.storage.SearchChunks(ctx, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		results = append(results, map[string]interface{}{
			"path":     hit.DocumentPath,
			"ordinal":  hit.Ordinal,
			"rank":     hit.Rank,
			"snippet":  hit.Snippet,
			"content":  hit.Content,
			"metadata": hit.Metadata,
		})
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := arguments(request); err != nil {
		return nil, err
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var lastChunked interface{}
	if status.LastChunkedAt != nil {
		lastChunked = status.LastChunkedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"documents_count": status.Documents,
			"chunks_count":    status.Chunks,
			"units_count":     status.Units,
			"last_chunked_at": lastChunked,
			"index_size_mb":   fmt.Sprintf("%.2f", status.SizeMB),
		},
		"storage": map[string]interface{}{
			"schema_version": status.SchemaVersion,
			"build_mode":     status.BuildMode,
		},
		"embedding": map[string]interface{}{
			"provider": s.provider,
			"model":    s.model,
		},
		"defaults":             s.defaults,
		"indexing_in_progress": s.indexLock.Held(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// arguments returns the call's argument object; a call without arguments
// yields an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// parseOptions overlays call parameters onto the server defaults
func (s *Server) parseOptions(args map[string]interface{}) (chunker.Options, error) {
	opts := chunker.Options{
		BufferSize:          getIntDefault(args, "buffer_size", s.defaults.BufferSize),
		PercentileThreshold: getFloatDefault(args, "percentile_threshold", s.defaults.PercentileThreshold),
		MinChunkSentences:   getIntDefault(args, "min_chunk_sentences", s.defaults.MinChunkSentences),
	}
	if err := opts.Validate(); err != nil {
		return opts, newMCPError(ErrorCodeInvalidParams, "invalid chunking options", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return opts, nil
}

func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	return path, nil
}

// chunkingError maps pipeline failures onto MCP error codes
func chunkingError(err error) error {
	switch {
	case errors.Is(err, types.ErrComputation):
		return newMCPError(ErrorCodeTextTooShort, "text must contain at least two units", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, chunker.ErrInvalidOptions), errors.Is(err, loader.ErrUnsupported), errors.Is(err, loader.ErrTooLarge):
		return newMCPError(ErrorCodeInvalidParams, "invalid request", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "chunking failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func pathError(err error) error {
	code := ErrorCodeInvalidParams
	if errors.Is(err, ErrPathNotFound) {
		code = ErrorCodePathNotFound
	}
	return newMCPError(code, "invalid path", map[string]interface{}{
		"param":  "path",
		"reason": err.Error(),
	})
}

// resolvedName reports the segmenter that actually handles text
func resolvedName(seg segmenter.Segmenter, text string) string {
	if auto, ok := seg.(*segmenter.AutoSegmenter); ok {
		return auto.Resolve(text).Name()
	}
	return seg.Name()
}

func documentSummary(doc *storage.Document) map[string]interface{} {
	summary := map[string]interface{}{
		"path":                doc.Path,
		"kind":                doc.Kind,
		"segmenter":           doc.Segmenter,
		"unit_count":          doc.UnitCount,
		"chunk_count":         doc.ChunkCount,
		"buffer_size":         doc.BufferSize,
		"percentile":          doc.Percentile,
		"min_chunk_sentences": doc.MinChunkSentences,
		"provider":            doc.Provider,
		"model":               doc.Model,
		"chunked_at":          doc.ChunkedAt.Format(time.RFC3339),
	}
	if doc.Threshold != nil {
		summary["threshold"] = *doc.Threshold
	}
	return summary
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that an absolute path exists and is readable
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() && !loader.Supported(path) {
		return ErrUnsupportedFile
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// validateFile is validatePath restricted to regular files
func validateFile(path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrNotFile
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotFile         = errors.New("path is not a file")
	ErrUnsupportedFile = errors.New("file type is not supported")
)
