package git

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"taxhist/internal/backends"
	"taxhist/internal/paths"
)

// FileExists checks for path at commit without reading its content.
func (g *GitAdapter) FileExists(ctx context.Context, commit, path string) (bool, error) {
	_, err := g.run(ctx, "cat-file", "-e", commit+":"+paths.NormalizePath(path))
	if err == nil {
		return true, nil
	}
	// cat-file exits 128 for a missing object, 1 on older versions
	if code := exitCode(err); code == 1 || code == 128 {
		return false, nil
	}
	return false, err
}

// ReadFile returns the raw content of path at commit.
func (g *GitAdapter) ReadFile(ctx context.Context, commit, path string) ([]byte, error) {
	spec := commit + ":" + paths.NormalizePath(path)
	data, err := g.run(ctx, "cat-file", "blob", spec)
	if err != nil {
		if code := exitCode(err); code == 1 || code == 128 {
			return nil, fmt.Errorf("%s: %w", spec, backends.ErrFileNotFound)
		}
		return nil, err
	}
	return data, nil
}

// ListFiles lists files under prefix at commit.
func (g *GitAdapter) ListFiles(ctx context.Context, commit, prefix string) ([]string, error) {
	prefix = paths.NormalizePrefix(prefix)
	args := []string{"ls-tree", "-r", "--name-only", commit}
	if prefix != "" {
		args = append(args, "--", prefix)
	}

	lines, err := g.runLines(ctx, args...)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			files = append(files, line)
		}
	}
	sort.Strings(files)
	return files, nil
}
