package alias

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/tywa/internal/config"
	"github.com/dshills/tywa/internal/logging"
)

// DefaultCacheSize bounds the number of clean files remembered between passes.
const DefaultCacheSize = 4096

// Unresolved is a rewritten reference whose target was not found on disk.
type Unresolved struct {
	File      string // Output file, project-relative
	Reference string // Reference as written before the rewrite
	Target    string // Resolved target, project-relative
}

// Result summarizes one rewrite pass.
type Result struct {
	// Scanned counts files read; clean files skipped via the cache are not
	// counted.
	Scanned int

	// Rewritten lists changed files, project-relative.
	Rewritten []string

	Unresolved []Unresolved
}

// stamp identifies a file's content without reading it.
type stamp struct {
	size    int64
	modTime time.Time
}

// Rewriter rewrites alias references across the output tree.
type Rewriter struct {
	cfg   *config.Config
	table *Table
	log   *logging.Logger

	// clean maps absolute paths of files without alias references to the
	// stamp they had when scanned.
	clean *lru.Cache[string, stamp]
}

// NewRewriter creates a rewriter for cfg's output tree.
func NewRewriter(cfg *config.Config, table *Table, log *logging.Logger) (*Rewriter, error) {
	if log == nil {
		log = logging.Null
	}
	clean, err := lru.New[string, stamp](DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Rewriter{
		cfg:   cfg,
		table: table,
		log:   log.WithComponent("alias"),
		clean: clean,
	}, nil
}

// Forget drops cached state for paths, which may be absolute or
// project-relative. Files written by the compiler must be forgotten before the
// next pass.
func (r *Rewriter) Forget(paths ...string) {
	for _, p := range paths {
		r.clean.Remove(r.cfg.Abs(p))
	}
}

// Rewrite runs one pass over every .js file under the output directory.
func (r *Rewriter) Rewrite(ctx context.Context) (Result, error) {
	var res Result
	if r.table.Len() == 0 {
		return res, nil
	}

	outDir := r.cfg.Abs(r.cfg.OutDir)
	files, err := doublestar.Glob(os.DirFS(outDir), "**/*.js", doublestar.WithFilesOnly())
	if err != nil {
		return res, &RewriteError{Path: r.cfg.OutDir, Op: "read", Err: err}
	}
	sort.Strings(files)

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		path := filepath.Join(outDir, filepath.FromSlash(name))
		scanned, changed, unresolved, err := r.rewriteFile(path)
		if err != nil {
			return res, err
		}
		if !scanned {
			continue
		}
		res.Scanned++
		if changed {
			res.Rewritten = append(res.Rewritten, r.cfg.Rel(path))
		}
		res.Unresolved = append(res.Unresolved, unresolved...)
	}

	for _, u := range res.Unresolved {
		r.log.Warn("%s: alias reference %q points to missing %s", u.File, u.Reference, u.Target)
	}
	if len(res.Rewritten) > 0 {
		r.log.Debug("rewrote alias references in %d of %d files", len(res.Rewritten), res.Scanned)
	}
	return res, nil
}

// rewriteFile rewrites one file. Files known to be clean are not scanned.
func (r *Rewriter) rewriteFile(path string) (scanned, changed bool, unresolved []Unresolved, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.clean.Remove(path)
			return false, false, nil, nil
		}
		return false, false, nil, &RewriteError{Path: path, Op: "stat", Err: err}
	}
	st := stamp{size: info.Size(), modTime: info.ModTime()}
	if cached, ok := r.clean.Get(path); ok && cached == st {
		return false, false, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, false, nil, &RewriteError{Path: path, Op: "read", Err: err}
	}

	out, unresolved := r.apply(path, data)
	if out != nil {
		if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
			return true, false, nil, &RewriteError{Path: path, Op: "write", Err: err}
		}
		if info, err = os.Stat(path); err != nil {
			return true, true, nil, &RewriteError{Path: path, Op: "stat", Err: err}
		}
		st = stamp{size: info.Size(), modTime: info.ModTime()}
	}

	// After a pass no alias reference remains, so the file is clean until it
	// changes again.
	r.clean.Add(path, st)
	return true, out != nil, unresolved, nil
}

type edit struct {
	start, end int
	text       string
}

// apply returns the rewritten content of the file at path, or nil when
// nothing matched.
func (r *Rewriter) apply(path string, data []byte) ([]byte, []Unresolved) {
	dir := filepath.Dir(path)

	var edits []edit
	var unresolved []Unresolved
	for _, ref := range Scan(data) {
		e, ok := r.table.Match(ref.Path)
		if !ok {
			continue
		}

		target := r.cfg.Abs(filepath.FromSlash(e.Target + ref.Path[len(e.Prefix):]))
		rel, err := filepath.Rel(dir, target)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, ".") {
			rel = "./" + rel
		}
		if rel == ref.Path || strings.IndexByte(rel, ref.Quote) >= 0 || strings.IndexByte(rel, '\\') >= 0 {
			continue
		}

		if !exists(target) {
			unresolved = append(unresolved, Unresolved{
				File:      r.cfg.Rel(path),
				Reference: ref.Path,
				Target:    r.cfg.Rel(target),
			})
		}
		edits = append(edits, edit{start: ref.Start, end: ref.End, text: rel})
	}

	if len(edits) == 0 {
		return nil, unresolved
	}

	// Back to front keeps earlier spans valid.
	out := data
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		buf := make([]byte, 0, len(out)-(e.end-e.start)+len(e.text))
		buf = append(buf, out[:e.start]...)
		buf = append(buf, e.text...)
		buf = append(buf, out[e.end:]...)
		out = buf
	}
	return out, unresolved
}

// exists reports whether the module loader could find target.
func exists(target string) bool {
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return true
	}
	for _, candidate := range []string{target + ".js", target + ".json", filepath.Join(target, "index.js")} {
		if _, err := os.Stat(candidate); err == nil {
			return true
		}
	}
	return false
}
