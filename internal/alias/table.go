package alias

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/tywa/internal/config"
)

// Entry is one alias rule with wildcards stripped and the root directory
// token replaced by the output directory.
type Entry struct {
	// Pattern is the alias as configured (e.g., "@/*").
	Pattern string

	// Prefix is matched against the start of a module reference.
	Prefix string

	// Target replaces Prefix. It is relative to the project root.
	Target string
}

// Table is the ordered, immutable alias table. The first matching entry wins.
type Table struct {
	entries []Entry
}

// NewTable builds the table from cfg. Aliases that could match already
// relative references are skipped and reported as warnings.
func NewTable(cfg *config.Config) (*Table, []string) {
	t := &Table{}
	var warnings []string

	rootDir := filepath.ToSlash(cfg.RootDir)
	outDir := filepath.ToSlash(cfg.OutDir)

	for _, a := range cfg.Aliases {
		if len(a.Targets) == 0 {
			warnings = append(warnings, fmt.Sprintf("alias %q has no targets; skipped", a.Pattern))
			continue
		}

		prefix := replaceRoot(strings.Replace(a.Pattern, "*", "", 1), rootDir, outDir)
		if prefix == "" || strings.HasPrefix(prefix, ".") || strings.HasPrefix(prefix, "/") {
			warnings = append(warnings, fmt.Sprintf("alias %q would match relative or absolute references; skipped", a.Pattern))
			continue
		}
		target := strings.TrimPrefix(strings.Replace(a.Targets[0], "*", "", 1), "./")
		target = replaceRoot(target, rootDir, outDir)

		t.entries = append(t.entries, Entry{Pattern: a.Pattern, Prefix: prefix, Target: target})
	}

	return t, warnings
}

// Entries returns a copy of the entries in match order.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Match returns the first entry whose prefix starts ref.
func (t *Table) Match(ref string) (Entry, bool) {
	for _, e := range t.entries {
		if strings.HasPrefix(ref, e.Prefix) {
			return e, true
		}
	}
	return Entry{}, false
}

// replaceRoot replaces the first occurrence of rootDir that forms whole path
// segments with outDir.
func replaceRoot(s, rootDir, outDir string) string {
	if rootDir == "" || rootDir == "." {
		return s
	}
	for from := 0; from <= len(s)-len(rootDir); {
		i := strings.Index(s[from:], rootDir)
		if i < 0 {
			break
		}
		i += from
		end := i + len(rootDir)
		if (i == 0 || s[i-1] == '/') && (end == len(s) || s[end] == '/') {
			return s[:i] + outDir + s[end:]
		}
		from = i + 1
	}
	return s
}
