package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"taxhist/internal/errors"
	"taxhist/internal/history"
	"taxhist/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS history_record (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL,
	watermark TEXT NOT NULL,
	cached_at TEXT NOT NULL,
	entry_count INTEGER NOT NULL,
	payload BLOB NOT NULL
)`

// SQLiteStore keeps the record as a single row in a SQLite database.
type SQLiteStore struct {
	conn   *sql.DB
	path   string
	logger *logging.Logger
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, logger *logging.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewCacheIOError("mkdir", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewCacheIOError("open", fmt.Errorf("failed to open database: %w", err))
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.NewCacheIOError("open", fmt.Errorf("failed to set pragma: %w", err))
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, errors.NewCacheIOError("open", fmt.Errorf("failed to initialize schema: %w", err))
	}

	logger.Debug("History database opened", map[string]interface{}{"path": path})
	return &SQLiteStore{conn: conn, path: path, logger: logger}, nil
}

// Path returns the database location
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load reads the stored row.
func (s *SQLiteStore) Load(ctx context.Context) (*history.Record, error) {
	var payload []byte
	err := s.conn.QueryRowContext(ctx, "SELECT payload FROM history_record WHERE id = 1").Scan(&payload)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewCacheIOError("read", err)
	}
	return decodeRecord(payload, s.logger)
}

// Save replaces the stored row inside a transaction.
func (s *SQLiteStore) Save(ctx context.Context, rec *history.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.NewCacheIOError("encode", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO history_record (id, version, watermark, cached_at, entry_count, payload)
			VALUES (1, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				version = excluded.version,
				watermark = excluded.watermark,
				cached_at = excluded.cached_at,
				entry_count = excluded.entry_count,
				payload = excluded.payload`,
			rec.Version, rec.Watermark, rec.CachedAt.UTC().Format(time.RFC3339Nano), len(rec.Entries), payload)
		return err
	})
	if err != nil {
		return errors.NewCacheIOError("write", err)
	}
	return nil
}

// Delete removes the stored row.
func (s *SQLiteStore) Delete(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM history_record"); err != nil {
		return errors.NewCacheIOError("delete", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// withTx executes fn within a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
