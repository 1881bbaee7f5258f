package watcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// GlobFilter keeps events whose path, relative to a root, matches at least one
// include pattern and no exclude pattern. Patterns use gobwas/glob syntax with
// '/' as separator: "*" stays within a segment and "**" crosses segments.
type GlobFilter struct {
	root    string
	include []glob.Glob
	exclude []glob.Glob
}

// NewGlobFilter compiles the include and exclude patterns.
func NewGlobFilter(root string, include, exclude []string) (*GlobFilter, error) {
	f := &GlobFilter{root: root}
	var err error
	if f.include, err = compileGlobs(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compileGlobs(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Match reports whether path passes the filter. Paths outside the root never
// match.
func (f *GlobFilter) Match(path string) bool {
	rel, ok := relSlash(f.root, path)
	if !ok {
		return false
	}
	if len(f.include) > 0 && !matchAny(f.include, rel) {
		return false
	}
	return !matchAny(f.exclude, rel)
}

// Filter adapts the matcher to an EventFilter.
func (f *GlobFilter) Filter() EventFilter {
	return func(event Event) bool {
		return f.Match(event.Path)
	}
}

func matchAny(globs []glob.Glob, s string) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// relSlash returns path relative to root in slash form.
func relSlash(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
