// Package indexer runs the chunking pipeline over files on disk.
//
//	idx := indexer.New(store, chunker, indexer.Config{Workers: 4, Provider: "local"})
//	stats, err := idx.IndexPath(ctx, "/path/to/corpus", chunker.DefaultOptions())
//	fmt.Printf("indexed %d documents in %v\n", stats.DocumentsIndexed, stats.Duration)
//
// # Pipeline
//
//  1. Discovery: walk the root, skipping hidden entries and unsupported
//     file types
//  2. Incremental decision: skip documents whose content hash, segmenter,
//     chunk options and embedding model all match the stored record
//  3. Load, segment and chunk (parallel, bounded by Workers)
//  4. Store: upsert the document and replace its chunks in one transaction
//  5. Prune: drop stored documents under the root whose files are gone
//
// A failure on one document is recorded in Statistics.ErrorMessages and
// does not stop the run. Cancelling the context does.
//
// Documents with a single unit cannot be profiled; they are stored as one
// chunk with no threshold.
//
// # Locking
//
// IndexLock lets a caller such as the MCP server refuse an indexing request
// while another is still running, without blocking.
package indexer
