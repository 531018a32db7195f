package storage

import (
	"context"
	"time"

	"github.com/dshills/semchunk/pkg/types"
)

// Storage persists chunked documents
type Storage interface {
	DocumentStore

	// SaveDocument upserts doc and replaces its chunks atomically
	SaveDocument(ctx context.Context, doc *Document, chunks []types.Chunk) error

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// SearchChunks runs a full-text query over stored chunk content
	SearchChunks(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// DocumentStore holds the operations available both directly and inside a
// transaction
type DocumentStore interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, path string) (*Document, error)
	GetDocumentByID(ctx context.Context, id int64) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	DeleteDocument(ctx context.Context, id int64) error

	// Chunk operations
	ReplaceChunks(ctx context.Context, documentID int64, chunks []types.Chunk) error
	ListChunks(ctx context.Context, documentID int64) ([]StoredChunk, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	DocumentStore
}

// Document records one chunked source file and the settings it was
// chunked with
type Document struct {
	ID                int64
	Path              string
	ContentHash       string
	Kind              string
	Segmenter         string
	SizeBytes         int64
	ModTime           time.Time
	UnitCount         int
	ChunkCount        int
	BufferSize        int
	Percentile        float64
	MinChunkSentences int
	Threshold         *float64 // nil when the document was too short to profile
	Provider          string
	Model             string
	ChunkedAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SameSettings reports whether doc was chunked from identical content with
// identical settings, so re-chunking would reproduce the stored chunks
func (d *Document) SameSettings(other *Document) bool {
	return d.ContentHash == other.ContentHash &&
		d.Segmenter == other.Segmenter &&
		d.BufferSize == other.BufferSize &&
		d.Percentile == other.Percentile &&
		d.MinChunkSentences == other.MinChunkSentences &&
		d.Provider == other.Provider &&
		d.Model == other.Model
}

// StoredChunk is a chunk row with its position in the document
type StoredChunk struct {
	ID         int64
	DocumentID int64
	Ordinal    int
	types.Chunk
}

// SearchResult is one full-text match
type SearchResult struct {
	DocumentPath string
	StoredChunk
	Rank    float64
	Snippet string
}

// Status summarises the store
type Status struct {
	Documents     int
	Chunks        int
	Units         int
	LastChunkedAt *time.Time
	SchemaVersion string
	BuildMode     string
	SizeMB        float64
}
