package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the per-repository directory holding config and cache files.
const StateDirName = ".taxhist"

// NormalizePath converts a repository path to the slash-separated form used in
// git trees, without a leading "./" or "/".
func NormalizePath(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	return strings.TrimLeft(normalized, "/")
}

// NormalizePrefix normalizes a directory prefix and guarantees a trailing slash.
// An empty prefix stays empty (the repository root).
func NormalizePrefix(prefix string) string {
	p := NormalizePath(prefix)
	if p == "" || strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// StateDir returns <repoRoot>/.taxhist
func StateDir(repoRoot string) string {
	return filepath.Join(repoRoot, StateDirName)
}

// EnsureStateDir creates the state directory if needed and returns its path.
func EnsureStateDir(repoRoot string) (string, error) {
	dir := StateDir(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultCachePath returns the default location of the persisted history for a
// store kind ("file" or "sqlite").
func DefaultCachePath(repoRoot, store string, compress bool) string {
	switch store {
	case "sqlite":
		return filepath.Join(StateDir(repoRoot), "history.db")
	default:
		if compress {
			return filepath.Join(StateDir(repoRoot), "history-cache.json.zst")
		}
		return filepath.Join(StateDir(repoRoot), "history-cache.json")
	}
}

// ResolveCachePath returns configured when set (relative paths are taken from
// repoRoot), otherwise the default for the store kind.
func ResolveCachePath(repoRoot, configured, store string, compress bool) string {
	if configured == "" {
		return DefaultCachePath(repoRoot, store, compress)
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(repoRoot, configured)
}
