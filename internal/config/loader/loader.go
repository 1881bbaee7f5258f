// Package loader reads tywa configuration documents.
//
// Each supported format (JSON and its tsconfig.json / package.json
// variants, TOML, YAML and Lua) decodes into the same Document. A Document
// is raw and unvalidated; the config package layers documents and turns the
// result into an immutable config.Config.
//
// Alias order matters (the first matching alias wins), so every loader
// preserves the order in which aliases appear in the source file.
package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Loader is the interface for configuration loaders.
type Loader interface {
	// Load reads configuration from the source.
	// Returns nil, nil if the source doesn't exist (not an error).
	Load() (*Document, error)
}

// FileLoader is the interface for loaders that read from files.
type FileLoader interface {
	Loader
	// LoadFrom reads configuration from a specific path.
	LoadFrom(path string) (*Document, error)
}

// PathAlias is one entry of the `paths` mapping: an alias pattern and the
// target patterns it resolves to. Only the first target is used.
type PathAlias struct {
	Pattern string
	Targets []string
}

// CompilerOptions are the TypeScript compilerOptions fields tywa falls back
// to when its own options leave them unset.
type CompilerOptions struct {
	OutDir   string
	RootDir  string
	Paths    []PathAlias
	HasPaths bool
}

// Document is the raw content of one configuration source.
type Document struct {
	// Source is the path (or "<env>") the document was read from.
	Source string

	// HasOptions is false when the source holds no tywa options at all
	// (a tsconfig.json without tywaOptions).
	HasOptions bool

	OutDir               string
	RootDir              string
	Paths                []PathAlias
	HasPaths             bool
	UnwatchedDirectories []string
	MainOutputFile       string
	TSConfig             string
	Runtime              string
	ShutdownTimeout      string
	Debounce             string
	LogLevel             string

	// Compiler holds compilerOptions found alongside the tool options
	// (tsconfig.json only) or loaded from the file named by TSConfig.
	Compiler *CompilerOptions

	// Warnings are non-fatal problems noticed while decoding.
	Warnings []string
}

// Overlay copies every field set in over onto d.
func (d *Document) Overlay(over *Document) {
	if over == nil {
		return
	}
	d.HasOptions = d.HasOptions || over.HasOptions
	setString(&d.OutDir, over.OutDir)
	setString(&d.RootDir, over.RootDir)
	setString(&d.MainOutputFile, over.MainOutputFile)
	setString(&d.TSConfig, over.TSConfig)
	setString(&d.Runtime, over.Runtime)
	setString(&d.ShutdownTimeout, over.ShutdownTimeout)
	setString(&d.Debounce, over.Debounce)
	setString(&d.LogLevel, over.LogLevel)
	if over.HasPaths {
		d.Paths = over.Paths
		d.HasPaths = true
	}
	if over.UnwatchedDirectories != nil {
		d.UnwatchedDirectories = over.UnwatchedDirectories
	}
	if over.Compiler != nil {
		d.Compiler = over.Compiler
	}
	d.Warnings = append(d.Warnings, over.Warnings...)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	fs.FS
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// Open implements fs.FS.
func (OSFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the default file system (OS).
func DefaultFS() FileSystem {
	return OSFS{}
}

// ForPath picks the loader for a configuration file by its name.
func ForPath(fsys FileSystem, path string) (FileLoader, error) {
	base := filepath.Base(path)
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case base == "tsconfig.json":
		return NewJSONLoaderWithFS(fsys, path, JSONTSConfig), nil
	case base == "package.json":
		return NewJSONLoaderWithFS(fsys, path, JSONPackage), nil
	case ext == ".json" || base == ".tywa":
		return NewJSONLoaderWithFS(fsys, path, JSONPlain), nil
	case ext == ".toml":
		return NewTOMLLoaderWithFS(fsys, path), nil
	case ext == ".yaml" || ext == ".yml":
		return NewYAMLLoaderWithFS(fsys, path), nil
	case ext == ".lua":
		return NewLuaLoaderWithFS(fsys, path), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// DiscoveryOrder lists the file names probed, in order, when no
// configuration path is given.
var DiscoveryOrder = []string{
	"tsconfig.json",
	"package.json",
	".tywa",
	"tywa.toml",
	"tywa.yaml",
	"tywa.yml",
	"tywa.lua",
}
