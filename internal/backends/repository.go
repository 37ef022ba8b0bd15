// Package backends defines the revision-history contract consumed by the
// history engine and the matcher used to decide which commits are relevant.
package backends

import (
	"context"
	"errors"
	"time"
)

// Backend identifiers
const (
	// KindGoGit reads history in-process with go-git
	KindGoGit = "gogit"
	// KindExec shells out to the git binary
	KindExec = "exec"
)

// ErrFileNotFound is returned by ReadFile when the path does not exist at the
// requested commit.
var ErrFileNotFound = errors.New("file not found at commit")

// Commit is an immutable revision identity.
type Commit struct {
	Hash         string    `json:"hash"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"date"`
	Message      string    `json:"message"` // First line only
	ChangedFiles []string  `json:"changedFiles,omitempty"`
}

// ShortHash returns the abbreviated commit hash.
func (c Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

// Repository is a version-controlled history store.
//
// ListCommits returns commits newest-first whose changed files match one of
// patterns. When olderThan is set, only commits reachable from olderThan's
// first parent (inclusive) are considered; a root olderThan yields an empty
// list. Merge commits carry no changed files and are never relevant.
type Repository interface {
	ID() string
	ListCommits(ctx context.Context, patterns []string, olderThan string) ([]Commit, error)
	FileExists(ctx context.Context, commit, path string) (bool, error)
	// ReadFile returns ErrFileNotFound (possibly wrapped) when path is absent.
	ReadFile(ctx context.Context, commit, path string) ([]byte, error)
	// ListFiles returns every file path under prefix at commit, sorted.
	ListFiles(ctx context.Context, commit, prefix string) ([]string, error)
}
