// Package storage persists chunked documents in SQLite.
//
// Two tables hold the data: documents records each source file with the
// content hash and chunking settings it was processed with, and chunks
// holds the ordered chunks with their sentence ranges and subtitle timing.
// An external-content FTS5 index over chunk content backs SearchChunks.
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_vec tag switches to github.com/mattn/go-sqlite3; add the fts5 tag
// as well so the full-text index can be created.
//
// # Migrations
//
// Schema versions are semantic versions recorded in schema_version and
// applied in order by ApplyMigrations on open. RollbackMigration undoes the
// most recent one.
//
// # Transactions
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertDocument(ctx, doc); err != nil {
//	    return err
//	}
//	if err := tx.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// SaveDocument wraps exactly this sequence.
package storage
