package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/semchunk/internal/assembler"
	"github.com/dshills/semchunk/internal/chunker"
	"github.com/dshills/semchunk/internal/loader"
	"github.com/dshills/semchunk/internal/logging"
	"github.com/dshills/semchunk/internal/segmenter"
	"github.com/dshills/semchunk/internal/storage"
	"github.com/dshills/semchunk/pkg/types"
)

// Indexer coordinates the pipeline: load -> segment -> chunk -> store
type Indexer struct {
	chunker  *chunker.Chunker
	storage  storage.Storage
	logger   logging.Logger
	provider string
	model    string

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers  int    // Number of concurrent documents (default: runtime.NumCPU())
	Provider string // embedding provider recorded with each document
	Model    string // embedding model recorded with each document
	Logger   logging.Logger
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	DocumentsIndexed int
	DocumentsSkipped int
	DocumentsFailed  int
	DocumentsRemoved int
	UnitsProcessed   int
	ChunksCreated    int
	Duration         time.Duration
	ErrorMessages    []string
}

// FileResult is the outcome of chunking one file
type FileResult struct {
	Document  *loader.Document
	Segmenter string
	Units     int
	Chunks    []types.Chunk
	Threshold *float64 // nil when there were fewer than two units
}

// New creates a new Indexer instance
func New(store storage.Storage, c *chunker.Chunker, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Indexer{
		chunker:  c,
		storage:  store,
		logger:   cfg.Logger,
		provider: cfg.Provider,
		model:    cfg.Model,
		workers:  cfg.Workers,
	}
}

// ChunkFile loads and chunks path without touching storage.
//
// Documents with one unit become a single chunk and documents with no
// units produce no chunks, so every loaded file yields a partition.
func (idx *Indexer) ChunkFile(ctx context.Context, path string, opts chunker.Options) (*FileResult, error) {
	doc, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	return idx.chunkDocument(ctx, doc, opts)
}

// ChunkText chunks in-memory text with the same short-input handling as
// ChunkFile. The result's Document has no path.
func (idx *Indexer) ChunkText(ctx context.Context, text string, opts chunker.Options) (*FileResult, error) {
	doc := &loader.Document{Kind: loader.KindText, Content: text, Size: int64(len(text))}
	return idx.chunkDocument(ctx, doc, opts)
}

func (idx *Indexer) chunkDocument(ctx context.Context, doc *loader.Document, opts chunker.Options) (*FileResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	seg := idx.segmenterFor(doc)
	units, err := seg.Segment(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", documentName(doc), err)
	}

	result := &FileResult{Document: doc, Segmenter: seg.Name(), Units: len(units)}

	switch len(units) {
	case 0:
		result.Chunks = []types.Chunk{}
	case 1:
		result.Chunks = assembler.Assemble(units, nil, opts.MinChunkSentences)
	default:
		res, err := idx.chunker.ChunkUnits(ctx, units, opts)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", documentName(doc), err)
		}
		result.Chunks = res.Chunks
		threshold := res.Threshold
		result.Threshold = &threshold
	}

	return result, nil
}

func documentName(doc *loader.Document) string {
	if doc.Path == "" {
		return "text"
	}
	return doc.Path
}

// segmenterFor resolves auto-detection per document so the stored
// segmenter name reflects what actually ran
func (idx *Indexer) segmenterFor(doc *loader.Document) segmenter.Segmenter {
	seg := idx.chunker.Segmenter()
	auto, ok := seg.(*segmenter.AutoSegmenter)
	if !ok {
		return seg
	}
	if doc.Kind == loader.KindSubtitle {
		return segmenter.NewSubtitleSegmenter()
	}
	return auto.Resolve(doc.Content)
}

// IndexPath chunks every supported file under root (or root itself when it
// is a file) and persists the results. Unchanged documents are skipped and
// documents whose files vanished from under root are removed.
func (idx *Indexer) IndexPath(ctx context.Context, root string, opts chunker.Options) (*Statistics, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	files, isDir, err := discoverFiles(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	idx.logger.Info("indexing", "root", absRoot, "files", len(files), "workers", idx.workers)

	if err := idx.indexFiles(ctx, files, opts, stats); err != nil {
		return nil, err
	}

	if isDir {
		removed, err := idx.pruneMissing(ctx, absRoot, files)
		if err != nil {
			return nil, fmt.Errorf("failed to prune removed documents: %w", err)
		}
		stats.DocumentsRemoved = removed
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("indexing complete",
		"indexed", stats.DocumentsIndexed,
		"skipped", stats.DocumentsSkipped,
		"failed", stats.DocumentsFailed,
		"removed", stats.DocumentsRemoved,
		"chunks", stats.ChunksCreated,
		"duration", stats.Duration)

	return stats, nil
}

// discoverFiles lists supported, non-hidden files under root
func discoverFiles(root string) ([]string, bool, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		if !loader.Supported(root) {
			return nil, false, fmt.Errorf("%w: %s", loader.ErrUnsupported, root)
		}
		return []string{root}, false, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		hidden := strings.HasPrefix(d.Name(), ".") && path != root
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}

		if hidden || !d.Type().IsRegular() || !loader.Supported(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, true, err
}

// indexFiles processes files concurrently, bounded by the worker count.
// Per-file failures are recorded in stats; only cancellation aborts the run.
func (idx *Indexer) indexFiles(ctx context.Context, files []string, opts chunker.Options, stats *Statistics) error {
	// Create worker pool with semaphore
	semaphore := make(chan struct{}, idx.workers)

	// Track progress with atomic counters
	var indexed, skipped, failed, units, chunks atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // Protect stats.ErrorMessages

dispatch:
	for _, path := range files {
		select {
		case <-gctx.Done():
			break dispatch
		case semaphore <- struct{}{}:
		}

		g.Go(func() error {
			defer func() { <-semaphore }()

			outcome, err := idx.indexFile(gctx, path, opts)
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				failed.Add(1)
				idx.logger.Warn("failed to index document", "path", path, "error", err)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
			case outcome == nil:
				skipped.Add(1)
			default:
				indexed.Add(1)
				units.Add(int32(outcome.Units))
				chunks.Add(int32(len(outcome.Chunks)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stats.DocumentsIndexed = int(indexed.Load())
	stats.DocumentsSkipped = int(skipped.Load())
	stats.DocumentsFailed = int(failed.Load())
	stats.UnitsProcessed = int(units.Load())
	stats.ChunksCreated = int(chunks.Load())
	return nil
}

// indexFile chunks and stores one file. A nil result with a nil error
// means the stored document is already current.
func (idx *Indexer) indexFile(ctx context.Context, path string, opts chunker.Options) (*FileResult, error) {
	doc, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	seg := idx.segmenterFor(doc)
	candidate := &storage.Document{
		Path:              doc.Path,
		ContentHash:       doc.Hash,
		Kind:              string(doc.Kind),
		Segmenter:         seg.Name(),
		SizeBytes:         doc.Size,
		ModTime:           doc.ModTime,
		BufferSize:        opts.BufferSize,
		Percentile:        opts.PercentileThreshold,
		MinChunkSentences: opts.MinChunkSentences,
		Provider:          idx.provider,
		Model:             idx.model,
	}

	existing, err := idx.storage.GetDocument(ctx, doc.Path)
	switch {
	case err == nil && existing.SameSettings(candidate):
		idx.logger.Debug("document unchanged", "path", doc.Path)
		return nil, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	result, err := idx.chunkDocument(ctx, doc, opts)
	if err != nil {
		return nil, err
	}

	candidate.Segmenter = result.Segmenter
	candidate.UnitCount = result.Units
	candidate.Threshold = result.Threshold
	if err := idx.storage.SaveDocument(ctx, candidate, result.Chunks); err != nil {
		return nil, err
	}

	return result, nil
}

// pruneMissing deletes stored documents under root that were not seen in
// this walk
func (idx *Indexer) pruneMissing(ctx context.Context, root string, seen []string) (int, error) {
	present := make(map[string]struct{}, len(seen))
	for _, p := range seen {
		present[p] = struct{}{}
	}

	docs, err := idx.storage.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}

	prefix := root + string(filepath.Separator)
	removed := 0
	for _, doc := range docs {
		if !strings.HasPrefix(doc.Path, prefix) {
			continue
		}
		if _, ok := present[doc.Path]; ok {
			continue
		}
		if _, err := os.Stat(doc.Path); err == nil {
			// Still on disk, just excluded from this walk (hidden or unsupported)
			continue
		}
		if err := idx.storage.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, err
		}
		idx.logger.Debug("removed document", "path", doc.Path)
		removed++
	}
	return removed, nil
}
