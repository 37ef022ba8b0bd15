package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"taxhist/internal/errors"
	"taxhist/internal/history"
	"taxhist/internal/logging"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// FileStore keeps the record as a single JSON document, optionally zstd
// compressed. Writes go through a temporary file and a rename.
type FileStore struct {
	path     string
	compress bool
	logger   *logging.Logger
	mu       sync.Mutex
}

// NewFileStore creates a store at path. Nothing is touched until Save.
func NewFileStore(path string, compress bool, logger *logging.Logger) *FileStore {
	return &FileStore{path: path, compress: compress, logger: logger}
}

// Path returns the file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. Compressed files are detected by their magic number,
// so toggling compression does not strand an existing cache.
func (s *FileStore) Load(ctx context.Context) (*history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewCacheIOError("read", err)
	}

	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.NewCacheIOError("decompress", err)
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, errors.NewCacheIOError("decompress", err)
		}
	}

	return decodeRecord(data, s.logger)
}

// Save writes the record atomically.
func (s *FileStore) Save(ctx context.Context, rec *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewCacheIOError("encode", err)
	}

	if s.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return errors.NewCacheIOError("compress", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewCacheIOError("mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.NewCacheIOError("write", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.NewCacheIOError("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.NewCacheIOError("sync", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.NewCacheIOError("write", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return errors.NewCacheIOError("rename", err)
	}

	s.logger.Debug("History record saved", map[string]interface{}{
		"path":       s.path,
		"bytes":      len(data),
		"compressed": s.compress,
	})
	return nil
}

// Delete removes the file.
func (s *FileStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.NewCacheIOError("delete", err)
	}
	return nil
}

// Close is a no-op for file stores
func (s *FileStore) Close() error {
	return nil
}

// decodeRecord parses a stored record. Records from another schema version are
// treated as absent.
func decodeRecord(data []byte, logger *logging.Logger) (*history.Record, error) {
	var rec history.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.NewCacheIOError("decode", err)
	}
	if rec.Version != history.RecordVersion {
		logger.Warn("Ignoring history record with unsupported version", map[string]interface{}{
			"version":  rec.Version,
			"expected": history.RecordVersion,
		})
		return nil, nil
	}
	return &rec, nil
}
