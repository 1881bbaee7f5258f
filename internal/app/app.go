// Package app wires configuration, compilation and watch-mode supervision
// into one run of the tool.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dshills/tywa/internal/alias"
	"github.com/dshills/tywa/internal/compile"
	"github.com/dshills/tywa/internal/config"
	"github.com/dshills/tywa/internal/logging"
	"github.com/dshills/tywa/internal/supervisor"
)

// Options configures the application.
type Options struct {
	// Production minifies output and disables watch mode.
	Production bool

	// Watch rebuilds on change and supervises the built entrypoint.
	Watch bool

	// ConfigPath is the explicit configuration file.
	ConfigPath string

	// ProjectRoot defaults to the working directory.
	ProjectRoot string

	// LogLevel overrides the configured level when set.
	LogLevel string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// ChildStdout and ChildStderr default to the application's own.
	ChildStdout io.Writer
	ChildStderr io.Writer

	// Compiler replaces esbuild; used by tests.
	Compiler compile.Compiler
}

// Application runs one build, and in watch mode keeps the built
// entrypoint running until it is told to stop.
type Application struct {
	mu sync.Mutex

	opts     Options
	cfg      *config.Config
	log      *logging.Logger
	table    *alias.Table
	rewriter *alias.Rewriter
	step     *compile.Step

	// Set while Run is active.
	sup    *supervisor.Supervisor
	cancel context.CancelFunc

	running atomic.Bool
}

// New resolves configuration and prepares the build pipeline. A
// configuration problem is returned as *config.Error.
func New(opts Options) (*Application, error) {
	if opts.LogLevel != "" && !logging.ValidLevel(opts.LogLevel) {
		return nil, NewOperationError("configure", "log level", ErrInvalidLogLevel).WithContext(opts.LogLevel)
	}

	logCfg := logging.DefaultConfig()
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	if opts.LogLevel != "" {
		logCfg.Level = logging.ParseLevel(opts.LogLevel)
	}
	log := logging.New(logCfg)

	if opts.Production && opts.Watch {
		log.Warn("--watch is ignored in production mode")
		opts.Watch = false
	}

	cfg, err := config.Resolve(config.ResolveOptions{
		ProjectRoot: opts.ProjectRoot,
		ConfigPath:  opts.ConfigPath,
		Watch:       opts.Watch,
		LoadDotEnv:  true,
	})
	if err != nil {
		return nil, err
	}
	if opts.LogLevel == "" {
		log.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}
	if cfg.File != "" {
		log.Debug("configuration loaded from %s", cfg.Rel(cfg.File))
	}
	for _, w := range cfg.Warnings {
		log.Warn("%s", w)
	}

	table, warnings := alias.NewTable(cfg)
	for _, w := range warnings {
		log.Warn("%s", w)
	}
	rewriter, err := alias.NewRewriter(cfg, table, log)
	if err != nil {
		return nil, NewOperationError("configure", "rewriter", err)
	}

	compiler := opts.Compiler
	if compiler == nil {
		compiler = compile.NewESBuild(cfg.ProjectRoot)
	}

	return &Application{
		opts:     opts,
		cfg:      cfg,
		log:      log,
		table:    table,
		rewriter: rewriter,
		step:     compile.NewStep(cfg, compiler, rewriter, opts.Production, log),
	}, nil
}

// Config returns the resolved configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Mode names the build mode.
func (app *Application) Mode() string {
	if app.opts.Production {
		return "production"
	}
	return "development"
}

// Run performs the initial build and, in watch mode, supervises the child
// until a signal drains it. It returns nil on a completed build or a
// graceful drain.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.mu.Lock()
	app.cancel = cancel
	app.mu.Unlock()
	defer func() {
		app.mu.Lock()
		app.cancel = nil
		app.sup = nil
		app.mu.Unlock()
	}()

	app.log.Info("mode: %s", app.Mode())
	if app.table.Len() > 0 {
		app.log.Debug("%d path aliases", app.table.Len())
	}

	if err := app.build(ctx); err != nil {
		// In watch mode only compile errors are survivable; the next change
		// rebuilds.
		if !app.opts.Watch || !errors.Is(err, ErrBuildFailed) {
			return err
		}
		app.log.Warn("initial build failed; waiting for changes")
	}
	if !app.opts.Watch {
		return nil
	}
	return app.watch(ctx)
}

// build compiles every source from a clean output directory.
func (app *Application) build(ctx context.Context) error {
	sources, err := compile.Sources(app.cfg)
	if err != nil {
		return NewOperationError("build", app.cfg.RootDir, err)
	}
	app.log.Debug("%d sources under %s", len(sources), app.cfg.RootDir)

	if err := app.step.CompileAll(ctx, sources); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		var compileErr *compile.Error
		if errors.As(err, &compileErr) {
			return NewOperationError("build", app.cfg.RootDir, ErrBuildFailed).WithContext(compileErr.Error())
		}
		return NewOperationError("build", app.cfg.RootDir, err)
	}
	return nil
}

// Signal asks the application to stop. In watch mode the child is drained
// first; before that point the run is cancelled.
func (app *Application) Signal(sig os.Signal) {
	app.mu.Lock()
	sup, cancel := app.sup, app.cancel
	app.mu.Unlock()

	switch {
	case sup != nil:
		sup.Post(supervisor.Signal{Sig: sig})
	case cancel != nil:
		app.log.Info("received %v; stopping", sig)
		cancel()
	}
}

// Shutdown stops a running application without draining the child.
func (app *Application) Shutdown() {
	app.mu.Lock()
	cancel := app.cancel
	app.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
