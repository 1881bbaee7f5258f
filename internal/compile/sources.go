package compile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/tywa/internal/config"
)

// Source patterns, relative to the root directory.
const (
	SourcePattern = "**/*.ts"
)

// ErrRootNotDir is returned by Sources when the root directory is a file.
var ErrRootNotDir = errors.New("not a directory")

// ExcludePatterns are never compiled.
var ExcludePatterns = []string{"**/*.d.ts", "**/*.test.ts"}

// IsSource reports whether rel, a slash-separated path relative to the root
// directory, is a compilable source.
func IsSource(rel string) bool {
	if ok, _ := doublestar.Match(SourcePattern, rel); !ok {
		return false
	}
	for _, pattern := range ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

// Sources lists every source under cfg.RootDir, project-relative and sorted.
func Sources(cfg *config.Config) ([]string, error) {
	root := cfg.Abs(cfg.RootDir)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root directory %s: %w", cfg.RootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root directory %s: %w", cfg.RootDir, ErrRootNotDir)
	}

	matches, err := doublestar.Glob(os.DirFS(root), SourcePattern,
		doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		if !IsSource(m) {
			continue
		}
		sources = append(sources, filepath.Join(cfg.RootDir, filepath.FromSlash(m)))
	}
	sort.Strings(sources)
	return sources, nil
}
