package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/dshills/tywa/internal/compile"
	"github.com/dshills/tywa/internal/process"
	"github.com/dshills/tywa/internal/supervisor"
	"github.com/dshills/tywa/internal/watcher"
)

// watch supervises the built entrypoint until drained.
func (app *Application) watch(ctx context.Context) error {
	w, fsw, err := app.newWatcher()
	if err != nil {
		return NewOperationError("watch", app.cfg.RootDir, err)
	}
	defer w.Close()

	if err := w.WatchRecursive(app.cfg.Abs(app.cfg.RootDir)); err != nil {
		return NewOperationError("watch", app.cfg.RootDir, err)
	}
	app.log.Debug("%d directories watched", fsw.WatchedDirs())

	sup := supervisor.New(app.cfg,
		supervisor.BuilderFunc(app.step.CompileFile),
		app.spawner(),
		app.log)

	app.mu.Lock()
	app.sup = sup
	app.mu.Unlock()

	relayCtx, stop := context.WithCancel(ctx)
	defer stop()
	go watcher.Relay(relayCtx, w,
		func(ev watcher.Event) {
			if ev.Op.Changed() {
				sup.Post(supervisor.FileChanged{Path: ev.Path})
			}
		},
		func(err error) {
			app.log.Warn("watcher: %v", err)
		})

	app.log.Info("watching %s", app.cfg.RootDir)
	err = sup.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return ErrInterrupted
	}
	return err
}

// newWatcher watches sources only, skipping the output tree when it lies
// inside the root directory.
func (app *Application) newWatcher() (*watcher.DebouncedWatcher, *watcher.FSNotifyWatcher, error) {
	root := app.cfg.Abs(app.cfg.RootDir)
	include, exclude := sourceGlobs()
	filter, err := watcher.NewGlobFilter(root, include, exclude)
	if err != nil {
		return nil, nil, err
	}

	opts := []watcher.Option{watcher.WithFilter(filter.Filter())}
	if pattern, ok := outDirIgnore(app.cfg.RootDir, app.cfg.OutDir); ok {
		opts = append(opts, watcher.WithIgnore(pattern))
	}

	fsw, err := watcher.NewFSNotifyWatcher(opts...)
	if err != nil {
		return nil, nil, err
	}
	return watcher.NewDebouncedWatcher(fsw, app.cfg.Debounce), fsw, nil
}

// sourceGlobs translates the source patterns into watcher globs, where "**"
// alone spans directories.
func sourceGlobs() (include, exclude []string) {
	include = []string{globFor(compile.SourcePattern)}
	for _, p := range compile.ExcludePatterns {
		exclude = append(exclude, globFor(p))
	}
	return include, exclude
}

func globFor(pattern string) string {
	return strings.Replace(pattern, "**/*", "**", 1)
}

// outDirIgnore returns the ignore pattern for outDir relative to rootDir.
func outDirIgnore(rootDir, outDir string) (string, bool) {
	rel, err := filepath.Rel(rootDir, outDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel) + "/**", true
}

// spawner starts the built entrypoint with the configured runtime.
func (app *Application) spawner() supervisor.Spawner {
	launcher := &process.Launcher{
		Runtime: app.cfg.Runtime,
		Entry:   app.cfg.Abs(app.cfg.MainOutputFile),
		Dir:     app.cfg.ProjectRoot,
		Stdout:  app.opts.ChildStdout,
		Stderr:  app.opts.ChildStderr,
	}
	return supervisor.SpawnerFunc(func() (process.Child, error) {
		proc, err := launcher.Start()
		if err != nil {
			return nil, err
		}
		app.log.Info("started %s (pid %d)", app.cfg.MainOutputFile, proc.PID())
		go app.reportExit(proc)
		return proc, nil
	})
}

// reportExit logs how a child ended. Children killed after acknowledging a
// restart report -1.
func (app *Application) reportExit(proc *process.Process) {
	<-proc.Done()
	if err := proc.ExitError(); err != nil && proc.ExitCode() > 0 {
		app.log.Warn("%s exited with code %d", app.cfg.MainOutputFile, proc.ExitCode())
		return
	}
	app.log.Debug("%s exited (code %d)", app.cfg.MainOutputFile, proc.ExitCode())
}
