//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag, using the C SQLite driver.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// The fts5 tag is required for the chunk full-text index.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
