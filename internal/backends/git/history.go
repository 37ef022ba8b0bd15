package git

import (
	"context"
	"strings"
	"time"

	"taxhist/internal/backends"
	"taxhist/internal/errors"
)

const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// logFormat emits hash, author, ISO date and subject separated by unit
// separators, each record prefixed by a record separator.
const logFormat = "--format=" + "%x1e" + "%H%x1f%an <%ae>%x1f%aI%x1f%s"

// ListCommits returns relevant commits newest-first.
func (g *GitAdapter) ListCommits(ctx context.Context, patterns []string, olderThan string) ([]backends.Commit, error) {
	start := "HEAD"
	if olderThan != "" {
		parent, err := g.firstParent(ctx, olderThan)
		if err != nil {
			return nil, err
		}
		if parent == "" {
			g.logger.Debug("Watermark is a root commit, history exhausted", map[string]interface{}{
				"olderThan": olderThan,
			})
			return []backends.Commit{}, nil
		}
		start = parent
	} else if !g.hasHead(ctx) {
		return []backends.Commit{}, nil
	}

	output, err := g.run(ctx, "log", logFormat, "--name-only", "--no-renames", start)
	if err != nil {
		return nil, err
	}

	matcher := backends.NewPathMatcher(patterns)
	all := parseLog(string(output))
	commits := make([]backends.Commit, 0, len(all))
	for _, c := range all {
		if matcher.MatchAny(c.ChangedFiles) {
			commits = append(commits, c)
		}
	}

	g.logger.Debug("Listed commits", map[string]interface{}{
		"start":    start,
		"examined": len(all),
		"relevant": len(commits),
	})
	return commits, nil
}

// firstParent resolves rev and returns its first parent, or "" for a root.
func (g *GitAdapter) firstParent(ctx context.Context, rev string) (string, error) {
	lines, err := g.runLines(ctx, "rev-list", "--parents", "-n", "1", rev)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", errors.NewRepositoryAccessError("Cannot resolve commit", nil).
			WithDetails(map[string]interface{}{"commit": rev})
	}
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return "", nil
	}
	return fields[1], nil
}

func (g *GitAdapter) hasHead(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "-q", "HEAD")
	return err == nil
}

// parseLog parses the output of logFormat with --name-only.
func parseLog(output string) []backends.Commit {
	records := strings.Split(output, recordSep)
	commits := make([]backends.Commit, 0, len(records))
	for _, record := range records {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		lines := strings.Split(record, "\n")
		parts := strings.SplitN(lines[0], fieldSep, 4)
		if len(parts) != 4 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, parts[2])
		if err != nil {
			ts = time.Time{}
		}

		c := backends.Commit{
			Hash:      parts[0],
			Author:    parts[1],
			Timestamp: ts,
			Message:   parts[3],
		}
		for _, line := range lines[1:] {
			if f := strings.TrimSpace(line); f != "" {
				c.ChangedFiles = append(c.ChangedFiles, f)
			}
		}
		commits = append(commits, c)
	}
	return commits
}
