// Package storage persists the history record between process runs.
package storage

import (
	"context"
	"fmt"

	"taxhist/internal/history"
	"taxhist/internal/logging"
)

// Store kinds
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Store is the durable mirror of the in-memory history record.
type Store interface {
	// Load returns the stored record, or nil when nothing has been stored.
	Load(ctx context.Context) (*history.Record, error)
	// Save replaces the stored record atomically.
	Save(ctx context.Context, rec *history.Record) error
	// Delete removes the stored record. Deleting nothing is not an error.
	Delete(ctx context.Context) error
	// Path is the on-disk location, for diagnostics.
	Path() string
	Close() error
}

// Open creates the store of the given kind at path.
func Open(kind, path string, compress bool, logger *logging.Logger) (Store, error) {
	switch kind {
	case KindFile, "":
		return NewFileStore(path, compress, logger), nil
	case KindSQLite:
		return OpenSQLite(path, logger)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
