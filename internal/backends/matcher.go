package backends

import (
	"path"
	"strings"

	"taxhist/internal/paths"
)

// PathMatcher decides whether a changed file is tracked.
//
// A pattern is an exact path, a path.Match glob, or a pattern containing a
// single "**" which matches any run of characters including "/".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher normalizes patterns and drops empty ones.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		if p = paths.NormalizePath(p); p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Patterns returns the normalized patterns.
func (m *PathMatcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Match reports whether file matches any pattern.
func (m *PathMatcher) Match(file string) bool {
	file = paths.NormalizePath(file)
	for _, p := range m.patterns {
		if matchPattern(p, file) {
			return true
		}
	}
	return false
}

// MatchAny reports whether any of files matches.
func (m *PathMatcher) MatchAny(files []string) bool {
	for _, f := range files {
		if m.Match(f) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, file string) bool {
	if pattern == file {
		return true
	}
	if i := strings.Index(pattern, "**"); i >= 0 {
		prefix, suffix := pattern[:i], pattern[i+2:]
		return len(file) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(file, prefix) &&
			strings.HasSuffix(file, suffix)
	}
	ok, err := path.Match(pattern, file)
	return err == nil && ok
}
