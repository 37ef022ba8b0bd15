package history

import (
	"context"

	"taxhist/internal/backends"
	"taxhist/internal/errors"
	"taxhist/internal/logging"
)

// CommitWalker enumerates revisions that touch the tracked paths.
type CommitWalker struct {
	repo     backends.Repository
	patterns []string
	logger   *logging.Logger
}

// NewCommitWalker creates a walker over repo for the given path patterns.
func NewCommitWalker(repo backends.Repository, patterns []string, logger *logging.Logger) *CommitWalker {
	return &CommitWalker{
		repo:     repo,
		patterns: append([]string(nil), patterns...),
		logger:   logger.WithFields(map[string]interface{}{"component": "walker"}),
	}
}

// ListCommits returns relevant commits newest-first. With olderThan set, only
// history behind that commit is listed. Every failure is reported as a
// RepositoryAccessError.
func (w *CommitWalker) ListCommits(ctx context.Context, olderThan string) ([]backends.Commit, error) {
	commits, err := w.repo.ListCommits(ctx, w.patterns, olderThan)
	if err != nil {
		w.logger.Warn("History unavailable", map[string]interface{}{
			"backend":   w.repo.ID(),
			"olderThan": olderThan,
			"error":     err.Error(),
		})
		if errors.CodeOf(err) == errors.RepositoryUnavailable {
			return nil, err
		}
		return nil, errors.NewRepositoryAccessError("Cannot list commits", err)
	}

	w.logger.Debug("Relevant commits listed", map[string]interface{}{
		"count":     len(commits),
		"olderThan": olderThan,
	})
	return commits, nil
}
