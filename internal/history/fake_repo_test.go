package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taxhist/internal/backends"
)

// fakeRepo is a linear in-memory history. Commits are appended oldest-first.
type fakeRepo struct {
	mu      sync.Mutex
	commits []backends.Commit
	trees   map[string]map[string]string
	listErr error
	reads   map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		trees: make(map[string]map[string]string),
		reads: make(map[string]int),
	}
}

// commit records a new commit whose tree is the previous tree with files
// applied. An empty content deletes the file.
func (r *fakeRepo) commit(hash string, files map[string]string) backends.Commit {
	r.mu.Lock()
	defer r.mu.Unlock()

	tree := make(map[string]string)
	if n := len(r.commits); n > 0 {
		for k, v := range r.trees[r.commits[n-1].Hash] {
			tree[k] = v
		}
	}
	changed := make([]string, 0, len(files))
	for path, content := range files {
		changed = append(changed, path)
		if content == "" {
			delete(tree, path)
		} else {
			tree[path] = content
		}
	}
	sort.Strings(changed)

	c := backends.Commit{
		Hash:         hash,
		Author:       "Test <test@example.org>",
		Timestamp:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(r.commits)) * time.Hour),
		Message:      "commit " + hash,
		ChangedFiles: changed,
	}
	r.commits = append(r.commits, c)
	r.trees[hash] = tree
	return c
}

func (r *fakeRepo) ID() string { return "fake" }

func (r *fakeRepo) ListCommits(ctx context.Context, patterns []string, olderThan string) ([]backends.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	end := len(r.commits)
	if olderThan != "" {
		end = -1
		for i, c := range r.commits {
			if c.Hash == olderThan {
				end = i
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("unknown commit %s", olderThan)
		}
	}

	matcher := backends.NewPathMatcher(patterns)
	out := []backends.Commit{}
	for i := end - 1; i >= 0; i-- {
		if matcher.MatchAny(r.commits[i].ChangedFiles) {
			out = append(out, r.commits[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) FileExists(ctx context.Context, commit, path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tree, ok := r.trees[commit]
	if !ok {
		return false, fmt.Errorf("unknown commit %s", commit)
	}
	_, exists := tree[path]
	return exists, nil
}

func (r *fakeRepo) ReadFile(ctx context.Context, commit, path string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads[commit+":"+path]++
	content, ok := r.trees[commit][path]
	if !ok {
		return nil, fmt.Errorf("%s:%s: %w", commit, path, backends.ErrFileNotFound)
	}
	return []byte(content), nil
}

func (r *fakeRepo) ListFiles(ctx context.Context, commit, prefix string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []string
	for path := range r.trees[commit] {
		if strings.HasPrefix(path, prefix) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (r *fakeRepo) readCount(commit, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads[commit+":"+path]
}

const catalogPath = "MeasurandTaxonomyCatalog.xml"

var trackedPaths = []string{catalogPath, "source/**.xml"}

// catalogXML renders a consolidated catalog. Each taxon is given as
// name[:attr=value...] where attr is deprecated, def or disc.
func catalogXML(taxa ...string) string {
	var b strings.Builder
	b.WriteString(`<mtc:Taxonomy xmlns:mtc="urn:mtc">`)
	for _, t := range taxa {
		b.WriteString(taxonXML(t))
	}
	b.WriteString(`</mtc:Taxonomy>`)
	return b.String()
}

func taxonXML(spec string) string {
	parts := strings.Split(spec, ":")
	name, deprecated, def := parts[0], "false", ""
	var discs []string
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		switch kv[0] {
		case "deprecated":
			deprecated = "true"
		case "def":
			def = kv[1]
		case "disc":
			discs = append(discs, kv[1])
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<mtc:Taxon name="%s" deprecated="%s">`, name, deprecated)
	if def != "" {
		fmt.Fprintf(&b, `<mtc:Definition>%s</mtc:Definition>`, def)
	}
	for _, d := range discs {
		fmt.Fprintf(&b, `<mtc:Discipline name="%s"/>`, d)
	}
	b.WriteString(`</mtc:Taxon>`)
	return b.String()
}
