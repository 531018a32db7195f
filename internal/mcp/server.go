package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/semchunk/internal/chunker"
	"github.com/dshills/semchunk/internal/indexer"
	"github.com/dshills/semchunk/internal/logging"
	"github.com/dshills/semchunk/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "semchunk"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Config carries the components the tools operate on
type Config struct {
	Storage storage.Storage
	Chunker *chunker.Chunker
	Indexer *indexer.Indexer

	// Defaults fill in chunking parameters a tool call omits
	Defaults chunker.Options

	// FixedWindowWords sizes units when a call selects the fixed segmenter
	FixedWindowWords int

	// Provider and Model are reported by get_status
	Provider string
	Model    string

	Logger logging.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	chunker *chunker.Chunker
	indexer *indexer.Indexer
	logger  logging.Logger

	defaults   chunker.Options
	fixedWords int
	provider   string
	model      string

	// indexLock serialises index_path calls
	indexLock indexer.IndexLock
}

// NewServer creates a new MCP server instance
func NewServer(cfg Config) (*Server, error) {
	if cfg.Storage == nil || cfg.Chunker == nil || cfg.Indexer == nil {
		return nil, errors.New("storage, chunker and indexer are required")
	}
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	s := &Server{
		mcp:        server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:    cfg.Storage,
		chunker:    cfg.Chunker,
		indexer:    cfg.Indexer,
		logger:     cfg.Logger,
		defaults:   cfg.Defaults,
		fixedWords: cfg.FixedWindowWords,
		provider:   cfg.Provider,
		model:      cfg.Model,
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", "name", ServerName, "version", ServerVersion)
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(chunkTextTool(), s.handleChunkText)
	s.mcp.AddTool(chunkFileTool(), s.handleChunkFile)
	s.mcp.AddTool(indexPathTool(), s.handleIndexPath)
	s.mcp.AddTool(getChunksTool(), s.handleGetChunks)
	s.mcp.AddTool(searchChunksTool(), s.handleSearchChunks)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
