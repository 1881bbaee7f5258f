package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"mvdan.cc/sh/v3/shell"

	"github.com/dshills/tywa/internal/config/loader"
	"github.com/dshills/tywa/internal/logging"
)

// Defaults applied when no source sets a value.
const (
	DefaultRuntime         = "node"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDebounce        = 100 * time.Millisecond
	DefaultLogLevel        = "info"
	EnvPrefix              = "TYWA_"
)

// Alias maps an alias pattern to its target patterns. Only the first
// target is used.
type Alias struct {
	Pattern string
	Targets []string
}

// Config is the resolved compiler configuration. It is built once by
// Resolve and must be treated as read-only afterward.
type Config struct {
	// ProjectRoot is the absolute directory every relative path is
	// resolved against.
	ProjectRoot string

	// File is the configuration file the options came from, if any.
	File string

	// OutDir and RootDir are project-relative and cleaned.
	OutDir  string
	RootDir string

	// Aliases keep the order they were declared in.
	Aliases []Alias

	// UnwatchedDirectories are path fragments whose changes rebuild
	// without restarting the child.
	UnwatchedDirectories []string

	// MainOutputFile is the built entrypoint the child runs (watch only).
	MainOutputFile string

	// TSConfig is handed to the compiler when set.
	TSConfig string

	// Runtime is the child command line, split into words.
	Runtime []string

	// ShutdownTimeout bounds the wait for a child's exit acknowledgment.
	// Zero waits forever.
	ShutdownTimeout time.Duration

	// Debounce coalesces rapid changes to one file.
	Debounce time.Duration

	LogLevel string

	// Warnings are non-fatal problems found while resolving.
	Warnings []string
}

// Abs resolves a project-relative path.
func (c *Config) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.ProjectRoot, rel)
}

// Rel makes path project-relative when it lies under the project root.
func (c *Config) Rel(path string) string {
	return relativeTo(c.ProjectRoot, path)
}

// ResolveOptions control configuration resolution.
type ResolveOptions struct {
	// ProjectRoot defaults to the working directory.
	ProjectRoot string

	// ConfigPath is the explicit --config value.
	ConfigPath string

	// Watch requires mainOutputFile.
	Watch bool

	// LoadDotEnv loads ProjectRoot/.env before reading TYWA_* variables.
	LoadDotEnv bool

	// FS defaults to the OS file system.
	FS loader.FileSystem

	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Resolve builds the immutable Config. Every failure is an *Error.
func Resolve(opts ResolveOptions) (*Config, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = loader.DefaultFS()
	}
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	root := opts.ProjectRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, newError("resolve", "", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, newError("resolve", opts.ProjectRoot, err)
	}

	if opts.LoadDotEnv {
		envFile := filepath.Join(root, ".env")
		if _, err := fsys.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, newError("load", envFile, err)
			}
		}
	}

	doc, file, err := loadDocument(fsys, root, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if doc.TSConfig != "" {
		tsPath := absUnder(root, doc.TSConfig)
		if _, err := fsys.Stat(tsPath); err == nil {
			ts, err := loader.NewJSONLoaderWithFS(fsys, tsPath, loader.JSONCompilerOnly).Load()
			if err != nil {
				return nil, newError("parse", tsPath, err)
			}
			if ts != nil && ts.Compiler != nil {
				doc.Compiler = ts.Compiler
			}
		} else {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("tsconfig %s not found; compilerOptions fallbacks skipped", doc.TSConfig))
		}
	}

	env, err := loader.NewEnvLoaderWithLookup(EnvPrefix, lookup).Load()
	if err != nil {
		return nil, newError("parse", "environment", err)
	}
	doc.Overlay(env)

	cfg, err := build(root, doc, opts.Watch, lookup)
	if err != nil {
		return nil, err
	}
	cfg.File = file
	return cfg, nil
}

// loadDocument reads the explicit config file, or discovers one.
func loadDocument(fsys loader.FileSystem, root, configPath string) (*loader.Document, string, error) {
	if configPath != "" {
		path := absUnder(root, configPath)

		info, err := fsys.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, "", newError("load", path, ErrConfigNotFound)
			}
			return nil, "", newError("load", path, err)
		}
		if info.IsDir() {
			return nil, "", newError("load", path, ErrConfigIsDirectory)
		}

		l, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, "", newError("load", path, err)
		}
		doc, err := l.Load()
		if err != nil {
			return nil, "", newError("parse", path, err)
		}
		if doc == nil {
			return nil, "", newError("load", path, ErrConfigNotFound)
		}
		return doc, path, nil
	}

	// Discovery: the first file carrying tywa options wins. A tsconfig.json
	// without tywaOptions still contributes its compilerOptions, and a
	// package.json without a tywa key is skipped.
	merged := &loader.Document{}
	var compiler *loader.CompilerOptions
	for _, name := range loader.DiscoveryOrder {
		path := filepath.Join(root, name)
		if _, err := fsys.Stat(path); err != nil {
			continue
		}

		l, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, "", newError("load", path, err)
		}
		doc, err := l.Load()
		if err != nil {
			var fe *loader.FieldError
			if name == "package.json" && errors.As(err, &fe) && fe.Field == "tywa" {
				continue
			}
			return nil, "", newError("parse", path, err)
		}
		if doc == nil {
			continue
		}
		if compiler == nil && doc.Compiler != nil {
			compiler = doc.Compiler
		}
		if doc.HasOptions {
			merged = doc
			if merged.Compiler == nil {
				merged.Compiler = compiler
			}
			return merged, path, nil
		}
	}

	merged.Compiler = compiler
	return merged, "", nil
}

// build validates the layered document and produces the Config.
func build(root string, doc *loader.Document, watch bool, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{
		ProjectRoot:    root,
		MainOutputFile: doc.MainOutputFile,
		Warnings:       append([]string(nil), doc.Warnings...),
	}

	outDir, rootDir := doc.OutDir, doc.RootDir
	paths, hasPaths := doc.Paths, doc.HasPaths
	if co := doc.Compiler; co != nil {
		if outDir == "" {
			outDir = co.OutDir
		}
		if rootDir == "" {
			rootDir = co.RootDir
		}
		if !hasPaths && co.HasPaths {
			paths, hasPaths = co.Paths, true
		}
	}

	if outDir == "" {
		return nil, newError("validate", "outDir", ErrOutDirUndefined)
	}
	if rootDir == "" {
		return nil, newError("validate", "rootDir", ErrRootDirUndefined)
	}
	if watch && cfg.MainOutputFile == "" {
		return nil, newError("validate", "mainOutputFile", ErrMainOutputUndefined)
	}

	cfg.OutDir = relativeTo(root, outDir)
	cfg.RootDir = relativeTo(root, rootDir)
	if err := checkOutDir(cfg.OutDir, cfg.RootDir); err != nil {
		return nil, newError("validate", "outDir", err)
	}
	if cfg.MainOutputFile != "" {
		cfg.MainOutputFile = relativeTo(root, cfg.MainOutputFile)
	}
	if doc.TSConfig != "" {
		cfg.TSConfig = relativeTo(root, doc.TSConfig)
	}

	if !hasPaths || len(paths) == 0 {
		cfg.Warnings = append(cfg.Warnings,
			"paths are not defined; if the project uses aliases in imports, they will not be rewritten")
	}
	for _, p := range paths {
		cfg.Aliases = append(cfg.Aliases, Alias{
			Pattern: p.Pattern,
			Targets: append([]string(nil), p.Targets...),
		})
	}
	cfg.UnwatchedDirectories = append([]string(nil), doc.UnwatchedDirectories...)

	runtime := doc.Runtime
	if runtime == "" {
		runtime = DefaultRuntime
	}
	words, err := shell.Fields(runtime, func(name string) string {
		v, _ := lookup(name)
		return v
	})
	if err != nil {
		return nil, newError("validate", "runtime", err)
	}
	if len(words) == 0 {
		return nil, newError("validate", "runtime", errors.New("runtime command is empty"))
	}
	cfg.Runtime = words

	if cfg.ShutdownTimeout, err = parseDuration(doc.ShutdownTimeout, DefaultShutdownTimeout); err != nil {
		return nil, newError("validate", "shutdownTimeout", err)
	}
	if cfg.Debounce, err = parseDuration(doc.Debounce, DefaultDebounce); err != nil {
		return nil, newError("validate", "debounce", err)
	}

	cfg.LogLevel = doc.LogLevel
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if !logging.ValidLevel(cfg.LogLevel) {
		return nil, newError("validate", "logLevel", fmt.Errorf("unknown log level %q", cfg.LogLevel))
	}

	return cfg, nil
}

// checkOutDir rejects output directories a clean build could not delete
// safely.
func checkOutDir(outDir, rootDir string) error {
	if outDir == "." || outDir == ".." || strings.HasPrefix(outDir, ".."+string(filepath.Separator)) || filepath.IsAbs(outDir) {
		return ErrUnsafeOutDir
	}
	if rootDir == outDir || strings.HasPrefix(rootDir+string(filepath.Separator), outDir+string(filepath.Separator)) {
		return ErrUnsafeOutDir
	}
	return nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

func absUnder(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// relativeTo keeps absolute paths out of the resolved config.
func relativeTo(root, path string) string {
	if !filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	return rel
}
