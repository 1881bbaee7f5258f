package loader

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

func patterns(paths []PathAlias) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.Pattern
	}
	return out
}

func TestForPath(t *testing.T) {
	memfs := NewMemFS()
	tests := []struct {
		path string
		want any
	}{
		{"/p/tsconfig.json", &JSONLoader{}},
		{"/p/package.json", &JSONLoader{}},
		{"/p/tywa.json", &JSONLoader{}},
		{"/p/.tywa", &JSONLoader{}},
		{"/p/tywa.toml", &TOMLLoader{}},
		{"/p/tywa.yml", &YAMLLoader{}},
		{"/p/tywa.yaml", &YAMLLoader{}},
		{"/p/tywa.lua", &LuaLoader{}},
	}
	for _, tt := range tests {
		l, err := ForPath(memfs, tt.path)
		require.NoError(t, err, tt.path)
		assert.IsType(t, tt.want, l, tt.path)
	}

	_, err := ForPath(memfs, "/p/tywa.config.js")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestJSONLoader_Plain(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/.tywa", `{
		// comments are fine
		"outDir": "dist",
		"rootDir": "src",
		"paths": {
			"@lib/*": ["src/lib/*"],
			"@/*": ["src/*"],
			"~/*": "src/*",
		},
		"unWatchedDirectories": ["commands"],
		"mainOutputFile": "dist/index.js",
		"shutdownTimeout": 2500,
		"debounce": "50ms"
	}`)

	doc, err := NewJSONLoaderWithFS(memfs, "/p/.tywa", JSONPlain).Load()
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "dist", doc.OutDir)
	assert.Equal(t, "src", doc.RootDir)
	assert.True(t, doc.HasPaths)
	assert.Equal(t, []string{"@lib/*", "@/*", "~/*"}, patterns(doc.Paths))
	assert.Equal(t, []string{"src/*"}, doc.Paths[2].Targets)
	assert.Equal(t, []string{"commands"}, doc.UnwatchedDirectories)
	assert.Equal(t, "dist/index.js", doc.MainOutputFile)
	assert.Equal(t, "2500ms", doc.ShutdownTimeout)
	assert.Equal(t, "50ms", doc.Debounce)
}

func TestJSONLoader_TSConfig(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tsconfig.json", `{
		"compilerOptions": {
			"outDir": "build",
			"rootDir": "source",
			"paths": {"@/*": ["source/*"]}
		},
		"tywaOptions": {"mainOutputFile": "build/main.js"}
	}`)

	doc, err := NewJSONLoaderWithFS(memfs, "/p/tsconfig.json", JSONTSConfig).Load()
	require.NoError(t, err)

	assert.Equal(t, "build/main.js", doc.MainOutputFile)
	assert.Empty(t, doc.OutDir)
	require.NotNil(t, doc.Compiler)
	assert.Equal(t, "build", doc.Compiler.OutDir)
	assert.Equal(t, "source", doc.Compiler.RootDir)
	assert.Equal(t, []string{"@/*"}, patterns(doc.Compiler.Paths))
}

func TestJSONLoader_PackageRequiresKey(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/package.json", `{"name": "bot"}`)

	_, err := NewJSONLoaderWithFS(memfs, "/p/package.json", JSONPackage).Load()
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "tywa", fe.Field)

	memfs.AddFile("/p/package.json", `{"name": "bot", "tywa": {"outDir": "dist", "rootDir": "src"}}`)
	doc, err := NewJSONLoaderWithFS(memfs, "/p/package.json", JSONPackage).Load()
	require.NoError(t, err)
	assert.Equal(t, "dist", doc.OutDir)
}

func TestJSONLoader_Invalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.json", `{"outDir": `)

	_, err := NewJSONLoaderWithFS(memfs, "/p/tywa.json", JSONPlain).Load()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/p/tywa.json", pe.Path)

	memfs.AddFile("/p/tywa.json", `{"paths": {"@/*": 3}}`)
	_, err = NewJSONLoaderWithFS(memfs, "/p/tywa.json", JSONPlain).Load()
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
}

func TestJSONLoader_Missing(t *testing.T) {
	doc, err := NewJSONLoaderWithFS(NewMemFS(), "/nope.json", JSONPlain).Load()
	assert.NoError(t, err)
	assert.Nil(t, doc)
}

func TestTOMLLoader_OrderedPaths(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.toml", `
outDir = "dist"
rootDir = "src"
unWatchedDirectories = ["commands", "assets"]
shutdownTimeout = "3s"

[[paths]]
alias = "@lib/*"
targets = ["src/lib/*"]

[[paths]]
alias = "@/*"
targets = "src/*"
`)

	doc, err := NewTOMLLoaderWithFS(memfs, "/p/tywa.toml").Load()
	require.NoError(t, err)

	assert.Equal(t, "dist", doc.OutDir)
	assert.Equal(t, []string{"@lib/*", "@/*"}, patterns(doc.Paths))
	assert.Equal(t, []string{"src/*"}, doc.Paths[1].Targets)
	assert.Equal(t, []string{"commands", "assets"}, doc.UnwatchedDirectories)
	assert.Equal(t, "3s", doc.ShutdownTimeout)
	assert.Empty(t, doc.Warnings)
}

func TestTOMLLoader_TablePathsAreSorted(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.toml", `
[paths]
"~/*" = ["src/*"]
"@/*" = ["src/*"]
`)

	doc, err := NewTOMLLoaderWithFS(memfs, "/p/tywa.toml").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"@/*", "~/*"}, patterns(doc.Paths))
	assert.Len(t, doc.Warnings, 1)
}

func TestTOMLLoader_ParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.toml", "outDir = \n")

	_, err := NewTOMLLoaderWithFS(memfs, "/p/tywa.toml").Load()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Greater(t, pe.Line, 0)
}

func TestTOMLLoader_WrongType(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.toml", "outDir = 5\n")

	_, err := NewTOMLLoaderWithFS(memfs, "/p/tywa.toml").Load()
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "outDir", fe.Field)
}

func TestYAMLLoader_OrderedPaths(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.yaml", `
outDir: dist
rootDir: src
paths:
  "~/*": src/*
  "@lib/*": [src/lib/*]
  "@/*": [src/*]
unWatchedDirectories: [commands]
debounce: 250
`)

	doc, err := NewYAMLLoaderWithFS(memfs, "/p/tywa.yaml").Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"~/*", "@lib/*", "@/*"}, patterns(doc.Paths))
	assert.Equal(t, []string{"src/*"}, doc.Paths[0].Targets)
	assert.Equal(t, "250ms", doc.Debounce)
	assert.Empty(t, doc.Warnings)
}

func TestYAMLLoader_TopLevelMustBeMapping(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.yaml", "- a\n- b\n")

	_, err := NewYAMLLoaderWithFS(memfs, "/p/tywa.yaml").Load()
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestLuaLoader(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.lua", `
local out = "dist"
return {
  outDir = out,
  rootDir = "src",
  paths = {
    { alias = "@lib/*", targets = { "src/lib/*" } },
    { alias = "@/*", targets = "src/*" },
  },
  unWatchedDirectories = { "commands" },
  mainOutputFile = out .. "/index.js",
  shutdownTimeout = 1500,
}
`)

	doc, err := NewLuaLoaderWithFS(memfs, "/p/tywa.lua").Load()
	require.NoError(t, err)

	assert.Equal(t, "dist", doc.OutDir)
	assert.Equal(t, "dist/index.js", doc.MainOutputFile)
	assert.Equal(t, []string{"@lib/*", "@/*"}, patterns(doc.Paths))
	assert.Equal(t, []string{"commands"}, doc.UnwatchedDirectories)
	assert.Equal(t, "1500ms", doc.ShutdownTimeout)
}

func TestLuaLoader_KeyedPaths(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/p/tywa.lua", `return { paths = { ["~/*"] = { "src/*" }, ["@/*"] = { "src/*" } } }`)

	doc, err := NewLuaLoaderWithFS(memfs, "/p/tywa.lua").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"@/*", "~/*"}, patterns(doc.Paths))
	assert.Len(t, doc.Warnings, 1)
}

func TestLuaLoader_Errors(t *testing.T) {
	memfs := NewMemFS()

	memfs.AddFile("/p/a.lua", `return "nope"`)
	_, err := NewLuaLoaderWithFS(memfs, "/p/a.lua").Load()
	var fe *FieldError
	assert.ErrorAs(t, err, &fe)

	memfs.AddFile("/p/b.lua", `return {`)
	_, err = NewLuaLoaderWithFS(memfs, "/p/b.lua").Load()
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)

	memfs.AddFile("/p/c.lua", `dofile("/etc/passwd") return {}`)
	_, err = NewLuaLoaderWithFS(memfs, "/p/c.lua").Load()
	assert.Error(t, err)
}

func TestEnvLoader(t *testing.T) {
	env := map[string]string{
		"TYWA_OUT_DIR":               "out",
		"TYWA_UNWATCHED_DIRECTORIES": "commands, assets",
		"TYWA_PATHS":                 `{"@x/*": ["src/x/*"], "@/*": ["src/*"]}`,
		"TYWA_LOG_LEVEL":             "",
	}
	l := NewEnvLoaderWithLookup("TYWA_", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	doc, err := l.Load()
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "out", doc.OutDir)
	assert.Empty(t, doc.LogLevel)
	assert.Equal(t, []string{"commands", "assets"}, doc.UnwatchedDirectories)
	assert.Equal(t, []string{"@x/*", "@/*"}, patterns(doc.Paths))
}

func TestEnvLoader_NothingSet(t *testing.T) {
	l := NewEnvLoaderWithLookup("TYWA_", func(string) (string, bool) { return "", false })
	doc, err := l.Load()
	assert.NoError(t, err)
	assert.Nil(t, doc)
}

func TestEnvLoader_BadPaths(t *testing.T) {
	l := NewEnvLoaderWithLookup("TYWA_", func(k string) (string, bool) {
		if k == "TYWA_PATHS" {
			return "{", true
		}
		return "", false
	})
	_, err := l.Load()
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(`["a","b"]`))
	assert.Equal(t, []string{"a", "b"}, parseList("a, ,b"))
}

func TestDocument_Overlay(t *testing.T) {
	base := &Document{OutDir: "dist", RootDir: "src", HasPaths: true, Paths: []PathAlias{{Pattern: "@/*"}}}
	base.Overlay(&Document{OutDir: "out", Warnings: []string{"w"}})

	assert.Equal(t, "out", base.OutDir)
	assert.Equal(t, "src", base.RootDir)
	assert.Len(t, base.Paths, 1)
	assert.Equal(t, []string{"w"}, base.Warnings)

	base.Overlay(nil)
	assert.Equal(t, "out", base.OutDir)
}
