package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/semchunk/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer; also keeps :memory: databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies pending migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// SaveDocument upserts doc and replaces its chunks in one transaction
func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *Document, chunks []types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := upsertDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := replaceChunks(ctx, tx, doc.ID, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}
	doc.ChunkCount = len(chunks)
	return nil
}

// Document operations

const documentColumns = `
	id, path, content_hash, kind, segmenter, size_bytes, mod_time, unit_count,
	chunk_count, buffer_size, percentile, min_chunk_sentences, threshold,
	provider, model, chunked_at, created_at, updated_at`

func upsertDocument(ctx context.Context, q querier, doc *Document) error {
	query := `
		INSERT INTO documents (path, content_hash, kind, segmenter, size_bytes, mod_time,
			unit_count, chunk_count, buffer_size, percentile, min_chunk_sentences, threshold,
			provider, model, chunked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			kind = excluded.kind,
			segmenter = excluded.segmenter,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time,
			unit_count = excluded.unit_count,
			chunk_count = excluded.chunk_count,
			buffer_size = excluded.buffer_size,
			percentile = excluded.percentile,
			min_chunk_sentences = excluded.min_chunk_sentences,
			threshold = excluded.threshold,
			provider = excluded.provider,
			model = excluded.model,
			chunked_at = excluded.chunked_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	if doc.ChunkedAt.IsZero() {
		doc.ChunkedAt = now
	}

	var threshold sql.NullFloat64
	if doc.Threshold != nil {
		threshold = sql.NullFloat64{Float64: *doc.Threshold, Valid: true}
	}

	err := q.QueryRowContext(ctx, query,
		doc.Path, doc.ContentHash, doc.Kind, doc.Segmenter, doc.SizeBytes, doc.ModTime,
		doc.UnitCount, doc.ChunkCount, doc.BufferSize, doc.Percentile, doc.MinChunkSentences, threshold,
		doc.Provider, doc.Model, doc.ChunkedAt, now, now).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	doc.UpdatedAt = now
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var threshold sql.NullFloat64
	err := row.Scan(
		&doc.ID, &doc.Path, &doc.ContentHash, &doc.Kind, &doc.Segmenter, &doc.SizeBytes,
		&doc.ModTime, &doc.UnitCount, &doc.ChunkCount, &doc.BufferSize, &doc.Percentile,
		&doc.MinChunkSentences, &threshold, &doc.Provider, &doc.Model,
		&doc.ChunkedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if threshold.Valid {
		doc.Threshold = &threshold.Float64
	}
	return &doc, nil
}

func getDocument(ctx context.Context, q querier, where string, arg interface{}) (*Document, error) {
	row := q.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE "+where, arg)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func listDocuments(ctx context.Context, q querier) ([]*Document, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func deleteDocument(ctx context.Context, q querier, id int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Chunk operations

func replaceChunks(ctx context.Context, q querier, documentID int64, chunks []types.Chunk) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	query := `
		INSERT INTO chunks (document_id, ordinal, content, content_hash, sentence_count,
			start_index, end_index, subtitle_index, start_time, end_time, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range chunks {
		c := &chunks[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		m := c.Metadata
		_, err := q.ExecContext(ctx, query,
			documentID, i, c.Content, c.ContentHash(), m.SentenceCount,
			m.StartSentenceIndex, m.EndSentenceIndex,
			nullInt(m.SubtitleIndex), nullString(m.StartTime), nullString(m.EndTime), nullString(m.Timestamp))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	result, err := q.ExecContext(ctx, "UPDATE documents SET chunk_count = ?, updated_at = ? WHERE id = ?",
		len(chunks), time.Now(), documentID)
	if err != nil {
		return fmt.Errorf("failed to update chunk count: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const chunkColumns = `
	c.id, c.document_id, c.ordinal, c.content, c.sentence_count, c.start_index,
	c.end_index, c.subtitle_index, c.start_time, c.end_time, c.timestamp`

func scanChunk(row rowScanner, extra ...interface{}) (StoredChunk, error) {
	var sc StoredChunk
	var subtitleIndex sql.NullInt64
	var startTime, endTime, timestamp sql.NullString

	dest := []interface{}{
		&sc.ID, &sc.DocumentID, &sc.Ordinal, &sc.Content, &sc.Metadata.SentenceCount,
		&sc.Metadata.StartSentenceIndex, &sc.Metadata.EndSentenceIndex,
		&subtitleIndex, &startTime, &endTime, &timestamp,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return sc, err
	}

	if subtitleIndex.Valid {
		idx := int(subtitleIndex.Int64)
		sc.Metadata.SubtitleIndex = &idx
	}
	sc.Metadata.StartTime = stringPtr(startTime)
	sc.Metadata.EndTime = stringPtr(endTime)
	sc.Metadata.Timestamp = stringPtr(timestamp)
	return sc, nil
}

func listChunks(ctx context.Context, q querier, documentID int64) ([]StoredChunk, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks c WHERE c.document_id = ? ORDER BY c.ordinal", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks := make([]StoredChunk, 0)
	for rows.Next() {
		sc, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, sc)
	}
	return chunks, rows.Err()
}

// SearchChunks matches every query term against chunk content and returns
// results best-first
func (s *SQLiteStorage) SearchChunks(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`, d.path, bm25(chunks_fts), snippet(chunks_fts, 0, '[', ']', '...', 12)
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts)
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]SearchResult, 0)
	for rows.Next() {
		var r SearchResult
		var score float64
		sc, err := scanChunk(rows, &r.DocumentPath, &score, &r.Snippet)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.StoredChunk = sc
		r.Rank = -score // bm25 is lower-is-better
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery quotes each whitespace-separated term so user input cannot
// inject FTS5 operators
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f != "" {
			terms = append(terms, `"`+f+`"`)
		}
	}
	return strings.Join(terms, " ")
}

// GetStatus reports counts and the latest chunking time
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{BuildMode: BuildMode}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(unit_count), 0) FROM documents").Scan(&status.Documents, &status.Units)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&status.Chunks); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	var last time.Time
	err = s.db.QueryRowContext(ctx, "SELECT chunked_at FROM documents ORDER BY chunked_at DESC LIMIT 1").Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read last chunk time: %w", err)
	default:
		status.LastChunkedAt = &last
	}

	version, err := currentVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// SQLiteStorage document store

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *Document) error {
	return upsertDocument(ctx, s.db, doc)
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, path string) (*Document, error) {
	return getDocument(ctx, s.db, "path = ?", path)
}

func (s *SQLiteStorage) GetDocumentByID(ctx context.Context, id int64) (*Document, error) {
	return getDocument(ctx, s.db, "id = ?", id)
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*Document, error) {
	return listDocuments(ctx, s.db)
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	return deleteDocument(ctx, s.db, id)
}

// ReplaceChunks swaps a document's chunks atomically
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, documentID int64, chunks []types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := replaceChunks(ctx, tx, documentID, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) ListChunks(ctx context.Context, documentID int64) ([]StoredChunk, error) {
	return listChunks(ctx, s.db, documentID)
}

// Transaction document store

func (t *sqliteTx) UpsertDocument(ctx context.Context, doc *Document) error {
	return upsertDocument(ctx, t.tx, doc)
}

func (t *sqliteTx) GetDocument(ctx context.Context, path string) (*Document, error) {
	return getDocument(ctx, t.tx, "path = ?", path)
}

func (t *sqliteTx) GetDocumentByID(ctx context.Context, id int64) (*Document, error) {
	return getDocument(ctx, t.tx, "id = ?", id)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]*Document, error) {
	return listDocuments(ctx, t.tx)
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, id int64) error {
	return deleteDocument(ctx, t.tx, id)
}

func (t *sqliteTx) ReplaceChunks(ctx context.Context, documentID int64, chunks []types.Chunk) error {
	return replaceChunks(ctx, t.tx, documentID, chunks)
}

func (t *sqliteTx) ListChunks(ctx context.Context, documentID int64) ([]StoredChunk, error) {
	return listChunks(ctx, t.tx, documentID)
}
