package config

import (
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFS struct {
	files map[string][]byte
	dirs  map[string]bool
}

func newMemFS() *memFS {
	return &memFS{files: map[string][]byte{}, dirs: map[string]bool{}}
}

func (m *memFS) add(path, content string) { m.files[path] = []byte(content) }

func (m *memFS) Open(string) (fs.File, error) { return nil, fs.ErrNotExist }

func (m *memFS) ReadFile(path string) ([]byte, error) {
	if data, ok := m.files[path]; ok {
		return data, nil
	}
	return nil, fs.ErrNotExist
}

func (m *memFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return fileInfo{name: filepath.Base(path)}, nil
	}
	if m.dirs[path] {
		return fileInfo{name: filepath.Base(path), dir: true}, nil
	}
	return nil, fs.ErrNotExist
}

type fileInfo struct {
	name string
	dir  bool
}

func (f fileInfo) Name() string       { return f.name }
func (f fileInfo) Size() int64        { return 0 }
func (f fileInfo) Mode() fs.FileMode  { return 0644 }
func (f fileInfo) ModTime() time.Time { return time.Time{} }
func (f fileInfo) IsDir() bool        { return f.dir }
func (f fileInfo) Sys() any           { return nil }

func noEnv(string) (string, bool) { return "", false }

const root = "/project"

func TestResolve_ExplicitJSON(t *testing.T) {
	m := newMemFS()
	m.add("/project/tywa.json", `{
		"outDir": "/project/dist",
		"rootDir": "src",
		"paths": {"@lib/*": ["src/lib/*"], "@/*": ["src/*"]},
		"unWatchedDirectories": ["commands"],
		"mainOutputFile": "dist/index.js",
		"runtime": "node --enable-source-maps"
	}`)

	cfg, err := Resolve(ResolveOptions{ProjectRoot: root, ConfigPath: "tywa.json", Watch: true, FS: m, Lookup: noEnv})
	require.NoError(t, err)

	assert.Equal(t, "/project/tywa.json", cfg.File)
	assert.Equal(t, "dist", cfg.OutDir, "absolute outDir must become project-relative")
	assert.Equal(t, "src", cfg.RootDir)
	require.Len(t, cfg.Aliases, 2)
	assert.Equal(t, "@lib/*", cfg.Aliases[0].Pattern)
	assert.Equal(t, "@/*", cfg.Aliases[1].Pattern)
	assert.Equal(t, []string{"commands"}, cfg.UnwatchedDirectories)
	assert.Equal(t, []string{"node", "--enable-source-maps"}, cfg.Runtime)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultDebounce, cfg.Debounce)
	assert.Equal(t, "/project/dist/index.js", cfg.Abs(cfg.MainOutputFile))
	assert.Empty(t, cfg.Warnings)
}

func TestResolve_ExplicitPathErrors(t *testing.T) {
	m := newMemFS()
	m.dirs["/project/conf"] = true
	m.add("/project/tywa.ini", "x")

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", "nope.json", ErrConfigNotFound},
		{"directory", "conf", ErrConfigIsDirectory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(ResolveOptions{ProjectRoot: root, ConfigPath: tt.path, FS: m, Lookup: noEnv})
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Resolve(ResolveOptions{ProjectRoot: root, ConfigPath: "tywa.ini", FS: m, Lookup: noEnv})
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
}

func TestResolve_DiscoveryUsesTSConfigFallbacks(t *testing.T) {
	m := newMemFS()
	m.add("/project/tsconfig.json", `{
		"compilerOptions": {"outDir": "./build", "rootDir": "./source", "paths": {"~/*": ["source/*"]}}
	}`)
	m.add("/project/package.json", `{"name": "app"}`)
	m.add("/project/tywa.toml", "mainOutputFile = \"build/main.js\"\n")

	cfg, err := Resolve(ResolveOptions{ProjectRoot: root, Watch: true, FS: m, Lookup: noEnv})
	require.NoError(t, err)

	assert.Equal(t, "/project/tywa.toml", cfg.File)
	assert.Equal(t, "build", cfg.OutDir)
	assert.Equal(t, "source", cfg.RootDir)
	require.Len(t, cfg.Aliases, 1)
	assert.Equal(t, "~/*", cfg.Aliases[0].Pattern)
	assert.Equal(t, "build/main.js", cfg.MainOutputFile)
}

func TestResolve_TSConfigOption(t *testing.T) {
	m := newMemFS()
	m.add("/project/.tywa", `{"tsconfig": "tsconfig.build.json"}`)
	m.add("/project/tsconfig.build.json", `{"compilerOptions": {"outDir": "out", "rootDir": "lib"}}`)

	cfg, err := Resolve(ResolveOptions{ProjectRoot: root, FS: m, Lookup: noEnv})
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutDir)
	assert.Equal(t, "lib", cfg.RootDir)
	assert.Equal(t, "tsconfig.build.json", cfg.TSConfig)
	assert.NotEmpty(t, cfg.Warnings, "missing paths should warn")
}

func TestResolve_Validation(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		watch bool
		want  error
	}{
		{"no outDir", `{"rootDir": "src"}`, false, ErrOutDirUndefined},
		{"no rootDir", `{"outDir": "dist"}`, false, ErrRootDirUndefined},
		{"watch without main", `{"outDir": "dist", "rootDir": "src"}`, true, ErrMainOutputUndefined},
		{"outDir is project", `{"outDir": ".", "rootDir": "src"}`, false, ErrUnsafeOutDir},
		{"outDir outside project", `{"outDir": "../dist", "rootDir": "src"}`, false, ErrUnsafeOutDir},
		{"rootDir inside outDir", `{"outDir": "dist", "rootDir": "dist/src"}`, false, ErrUnsafeOutDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemFS()
			m.add("/project/.tywa", tt.doc)
			_, err := Resolve(ResolveOptions{ProjectRoot: root, Watch: tt.watch, FS: m, Lookup: noEnv})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolve_WatchNotRequiredWithoutFlag(t *testing.T) {
	m := newMemFS()
	m.add("/project/.tywa", `{"outDir": "dist", "rootDir": "src", "paths": {}}`)

	cfg, err := Resolve(ResolveOptions{ProjectRoot: root, FS: m, Lookup: noEnv})
	require.NoError(t, err)
	assert.Empty(t, cfg.MainOutputFile)
}

func TestResolve_EnvOverrides(t *testing.T) {
	m := newMemFS()
	m.add("/project/.tywa", `{"outDir": "dist", "rootDir": "src", "paths": {"@/*": ["src/*"]}}`)
	env := map[string]string{
		"TYWA_OUT_DIR":          "out",
		"TYWA_SHUTDOWN_TIMEOUT": "0s",
		"TYWA_RUNTIME":          "$NODE_BIN --inspect",
		"NODE_BIN":              "/usr/local/bin/node",
		"TYWA_LOG_LEVEL":        "debug",
	}

	cfg, err := Resolve(ResolveOptions{ProjectRoot: root, FS: m, Lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}})
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutDir)
	assert.Equal(t, time.Duration(0), cfg.ShutdownTimeout)
	assert.Equal(t, []string{"/usr/local/bin/node", "--inspect"}, cfg.Runtime)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestResolve_BadValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"duration", `{"outDir": "dist", "rootDir": "src", "debounce": "soon"}`},
		{"log level", `{"outDir": "dist", "rootDir": "src", "logLevel": "chatty"}`},
		{"runtime quoting", `{"outDir": "dist", "rootDir": "src", "runtime": "node \"unterminated"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemFS()
			m.add("/project/.tywa", tt.doc)
			_, err := Resolve(ResolveOptions{ProjectRoot: root, FS: m, Lookup: noEnv})
			var cerr *Error
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestResolve_NothingFound(t *testing.T) {
	_, err := Resolve(ResolveOptions{ProjectRoot: root, FS: newMemFS(), Lookup: noEnv})
	assert.ErrorIs(t, err, ErrOutDirUndefined)
}

func TestConfig_Rel(t *testing.T) {
	cfg := &Config{ProjectRoot: "/project"}
	assert.Equal(t, filepath.Join("src", "a.ts"), cfg.Rel("/project/src/a.ts"))
	assert.Equal(t, filepath.Join("src", "a.ts"), cfg.Rel("src/a.ts"))
}

func TestError_Message(t *testing.T) {
	err := newError("validate", "outDir", ErrOutDirUndefined)
	assert.Equal(t, "config: validate outDir: output directory is not defined", err.Error())
	assert.ErrorIs(t, err, ErrOutDirUndefined)
}
