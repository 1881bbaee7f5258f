package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/tywa/internal/alias"
	"github.com/dshills/tywa/internal/config"
	"github.com/dshills/tywa/internal/logging"
)

// Rewriter repairs alias references after a compile.
type Rewriter interface {
	Forget(paths ...string)
	Rewrite(ctx context.Context) (alias.Result, error)
}

// Step compiles sources and runs the alias rewrite over the output tree.
type Step struct {
	cfg        *config.Config
	compiler   Compiler
	rewriter   Rewriter
	production bool
	log        *logging.Logger
}

// NewStep creates a compile step. production enables minification.
func NewStep(cfg *config.Config, compiler Compiler, rewriter Rewriter, production bool, log *logging.Logger) *Step {
	if log == nil {
		log = logging.Null
	}
	return &Step{
		cfg:        cfg,
		compiler:   compiler,
		rewriter:   rewriter,
		production: production,
		log:        log.WithComponent("compile"),
	}
}

// Clean deletes and recreates the output directory.
func (s *Step) Clean() error {
	outDir := s.cfg.Abs(s.cfg.OutDir)
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("cleaning %s: %w", s.cfg.OutDir, err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", s.cfg.OutDir, err)
	}
	return nil
}

// CompileAll performs a fresh build of paths into the output directory.
func (s *Step) CompileAll(ctx context.Context, paths []string) error {
	if err := s.Clean(); err != nil {
		return err
	}
	if len(paths) == 0 {
		s.log.Warn("no sources found under %s", s.cfg.RootDir)
		return nil
	}

	entries := make([]string, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, s.cfg.Abs(p))
	}

	return s.run(ctx, fmt.Sprintf("%d files", len(paths)), Request{
		EntryPoints: entries,
		OutDir:      s.cfg.Abs(s.cfg.OutDir),
		OutBase:     s.cfg.Abs(s.cfg.RootDir),
	})
}

// CompileFile compiles one source into its mirrored output directory.
func (s *Step) CompileFile(ctx context.Context, path string) error {
	abs := s.cfg.Abs(path)
	rel, err := filepath.Rel(s.cfg.Abs(s.cfg.RootDir), abs)
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}

	return s.run(ctx, s.cfg.Rel(abs), Request{
		EntryPoints: []string{abs},
		OutDir:      filepath.Join(s.cfg.Abs(s.cfg.OutDir), filepath.Dir(rel)),
	})
}

func (s *Step) run(ctx context.Context, entry string, req Request) error {
	req.Minify = s.production
	if s.cfg.TSConfig != "" {
		req.TSConfig = s.cfg.Abs(s.cfg.TSConfig)
	}

	resp, err := s.compiler.Compile(ctx, req)
	if err != nil {
		return fmt.Errorf("compile %s: %w", entry, err)
	}
	for _, w := range resp.Warnings {
		s.log.Warn("%s", w)
	}
	if len(resp.Errors) > 0 {
		for _, p := range resp.Errors {
			s.log.Error("%s", p)
		}
		s.log.Error("failed to compile %s", entry)
		return &Error{Entry: entry, Problems: resp.Errors}
	}

	s.rewriter.Forget(resp.Outputs...)
	if _, err := s.rewriter.Rewrite(ctx); err != nil {
		return err
	}

	s.log.Info("compiled %s", entry)
	return nil
}
