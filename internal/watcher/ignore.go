package watcher

import (
	"strings"

	"github.com/gobwas/glob"
)

// Ignore decides which paths under a watched root are skipped.
//
// A pattern without a slash matches any single path segment, so "node_modules"
// skips every node_modules directory and "*.swp" every swap file. A pattern
// with a slash is matched against the whole relative path:
//
//	node_modules      any segment named node_modules
//	*.tmp             any segment ending in .tmp
//	generated/**      everything under the top-level generated directory
type Ignore struct {
	segment []glob.Glob
	full    []glob.Glob
	hidden  bool
}

// NewIgnore compiles patterns. hidden also skips dot-prefixed segments.
func NewIgnore(patterns []string, hidden bool) (*Ignore, error) {
	ig := &Ignore{hidden: hidden}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		p = strings.Trim(p, "/")

		globs, err := compileGlobs([]string{p})
		if err != nil {
			return nil, err
		}
		if strings.Contains(p, "/") {
			ig.full = append(ig.full, globs...)
		} else {
			ig.segment = append(ig.segment, globs...)
		}
	}
	return ig, nil
}

// Match reports whether rel, a slash-separated path relative to the watched
// root, is ignored.
func (ig *Ignore) Match(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if ig.hidden && len(seg) > 1 && seg[0] == '.' && seg != ".." {
			return true
		}
		if matchAny(ig.segment, seg) {
			return true
		}
	}
	return matchAny(ig.full, rel) || matchAny(ig.full, rel+"/")
}
