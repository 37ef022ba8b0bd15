package git

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"taxhist/internal/backends"
	"taxhist/internal/config"
	"taxhist/internal/errors"
	"taxhist/internal/logging"
)

// DefaultQueryTimeout is used when the config does not set one
const DefaultQueryTimeout = 30 * time.Second

// GitAdapter reads revision history by shelling out to the git binary.
type GitAdapter struct {
	repoRoot     string
	queryTimeout time.Duration
	logger       *logging.Logger
}

var _ backends.Repository = (*GitAdapter)(nil)

// NewGitAdapter creates a new exec-based repository
func NewGitAdapter(cfg *config.Config, logger *logging.Logger) (*GitAdapter, error) {
	if logger == nil {
		return nil, errors.New(errors.InternalError, "Logger is required for GitAdapter", nil)
	}

	timeout := DefaultQueryTimeout
	if cfg.Backend.TimeoutMs > 0 {
		timeout = time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond
	}

	adapter := &GitAdapter{
		repoRoot:     cfg.RepoRoot,
		queryTimeout: timeout,
		logger:       logger,
	}

	if !adapter.IsAvailable() {
		return nil, errors.NewRepositoryAccessError("Git is not available in this repository", nil).
			WithDetails(map[string]interface{}{"repoRoot": cfg.RepoRoot})
	}

	logger.Info("Git adapter initialized", map[string]interface{}{
		"backend":  backends.KindExec,
		"repoRoot": cfg.RepoRoot,
		"timeout":  timeout.String(),
	})

	return adapter, nil
}

// ID returns the backend identifier
func (g *GitAdapter) ID() string {
	return backends.KindExec
}

// IsAvailable checks if git is installed and repoRoot is a repository
func (g *GitAdapter) IsAvailable() bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	_, err := g.run(context.Background(), "rev-parse", "--git-dir")
	return err == nil
}

// run executes git with the adapter timeout and returns raw stdout.
func (g *GitAdapter) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	g.logger.Debug("Executing git command", map[string]interface{}{
		"args":    args,
		"timeout": g.queryTimeout.String(),
	})

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.Timeout, "Git command timed out", err).
				WithDetails(map[string]interface{}{"args": args})
		}
		return nil, errors.NewRepositoryAccessError("Git command failed", err).
			WithDetails(map[string]interface{}{
				"args":   args,
				"stderr": strings.TrimSpace(stderr.String()),
			})
	}
	return output, nil
}

// runLines runs git and splits stdout into non-empty trimmed lines.
func (g *GitAdapter) runLines(ctx context.Context, args ...string) ([]string, error) {
	output, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result, nil
}

// exitCode extracts the process exit code from a failed run, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
