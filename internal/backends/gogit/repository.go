// Package gogit implements backends.Repository in-process with go-git.
package gogit

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"taxhist/internal/backends"
	"taxhist/internal/errors"
	"taxhist/internal/logging"
	"taxhist/internal/paths"
)

// Repository reads history from an on-disk repository without a git binary.
type Repository struct {
	repo   *git.Repository
	root   string
	logger *logging.Logger
}

var _ backends.Repository = (*Repository)(nil)

// Open opens the repository containing root.
func Open(root string, logger *logging.Logger) (*Repository, error) {
	if logger == nil {
		return nil, errors.New(errors.InternalError, "Logger is required for gogit repository", nil)
	}
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot open repository", err).
			WithDetails(map[string]interface{}{"repoRoot": root})
	}

	logger.Info("go-git repository opened", map[string]interface{}{
		"backend":  backends.KindGoGit,
		"repoRoot": root,
	})
	return &Repository{repo: repo, root: root, logger: logger}, nil
}

// ID returns the backend identifier
func (r *Repository) ID() string {
	return backends.KindGoGit
}

// ListCommits walks history newest-first and keeps commits touching patterns.
func (r *Repository) ListCommits(ctx context.Context, patterns []string, olderThan string) ([]backends.Commit, error) {
	var from plumbing.Hash
	if olderThan != "" {
		c, err := r.resolve(olderThan)
		if err != nil {
			return nil, err
		}
		if c.NumParents() == 0 {
			return []backends.Commit{}, nil
		}
		from = c.ParentHashes[0]
	} else {
		head, err := r.repo.Head()
		if err != nil {
			if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
				return []backends.Commit{}, nil
			}
			return nil, errors.NewRepositoryAccessError("Cannot resolve HEAD", err)
		}
		from = head.Hash()
	}

	iter, err := r.repo.Log(&git.LogOptions{From: from, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot walk history", err)
	}
	defer iter.Close()

	matcher := backends.NewPathMatcher(patterns)
	commits := []backends.Commit{}
	examined := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		examined++
		files, err := changedFiles(c)
		if err != nil {
			return err
		}
		if !matcher.MatchAny(files) {
			return nil
		}
		commits = append(commits, toCommit(c, files))
		return nil
	})
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Failed while walking history", err)
	}

	r.logger.Debug("Listed commits", map[string]interface{}{
		"from":     from.String(),
		"examined": examined,
		"relevant": len(commits),
	})
	return commits, nil
}

// FileExists checks the tree entry without reading the blob.
func (r *Repository) FileExists(ctx context.Context, commit, path string) (bool, error) {
	tree, err := r.tree(commit)
	if err != nil {
		return false, err
	}
	entry, err := tree.FindEntry(paths.NormalizePath(path))
	if err != nil {
		if stderrors.Is(err, object.ErrEntryNotFound) || stderrors.Is(err, object.ErrDirectoryNotFound) {
			return false, nil
		}
		return false, errors.NewRepositoryAccessError("Cannot read tree", err)
	}
	return entry.Mode.IsFile(), nil
}

// ReadFile returns the blob content of path at commit.
func (r *Repository) ReadFile(ctx context.Context, commit, path string) ([]byte, error) {
	tree, err := r.tree(commit)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(paths.NormalizePath(path))
	if err != nil {
		if stderrors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s:%s: %w", commit, path, backends.ErrFileNotFound)
		}
		return nil, errors.NewRepositoryAccessError("Cannot read file", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot open blob", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// ListFiles lists every file under prefix at commit.
func (r *Repository) ListFiles(ctx context.Context, commit, prefix string) ([]string, error) {
	tree, err := r.tree(commit)
	if err != nil {
		return nil, err
	}
	prefix = paths.NormalizePrefix(prefix)

	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if strings.HasPrefix(f.Name, prefix) {
			files = append(files, f.Name)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot list files", err)
	}
	sort.Strings(files)
	return files, nil
}

func (r *Repository) resolve(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot resolve commit", err).
			WithDetails(map[string]interface{}{"commit": rev})
	}
	c, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot load commit", err).
			WithDetails(map[string]interface{}{"commit": rev})
	}
	return c, nil
}

func (r *Repository) tree(commit string) (*object.Tree, error) {
	c, err := r.resolve(commit)
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, errors.NewRepositoryAccessError("Cannot load tree", err)
	}
	return tree, nil
}

// changedFiles diffs a commit against its parent. Root commits list their whole
// tree; merge commits report nothing, as `git log --name-only` does.
func changedFiles(c *object.Commit) ([]string, error) {
	if c.NumParents() > 1 {
		return nil, nil
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	if c.NumParents() == 0 {
		var files []string
		err := tree.Files().ForEach(func(f *object.File) error {
			files = append(files, f.Name)
			return nil
		})
		return files, err
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(changes))
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name
		}
		files = append(files, name)
	}
	return files, nil
}

func toCommit(c *object.Commit, files []string) backends.Commit {
	message := strings.TrimSpace(c.Message)
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = strings.TrimSpace(message[:i])
	}
	return backends.Commit{
		Hash:         c.Hash.String(),
		Author:       fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		Timestamp:    c.Author.When,
		Message:      message,
		ChangedFiles: files,
	}
}
