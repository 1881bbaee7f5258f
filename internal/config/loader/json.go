package loader

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// JSONMode selects where in a JSON file the tywa options live.
type JSONMode int

const (
	// JSONPlain reads options from the document root (*.json, .tywa).
	JSONPlain JSONMode = iota
	// JSONTSConfig reads options from "tywaOptions" and compiler fallbacks
	// from "compilerOptions".
	JSONTSConfig
	// JSONPackage reads options from the required "tywa" key.
	JSONPackage
	// JSONCompilerOnly reads only "compilerOptions" (the file named by the
	// tsconfig option).
	JSONCompilerOnly
)

// JSONLoader loads configuration from JSON files. Comments and trailing
// commas are accepted, as tsconfig.json commonly contains them.
type JSONLoader struct {
	fs   FileSystem
	path string
	mode JSONMode
}

// NewJSONLoader creates a new JSON loader for the given path.
func NewJSONLoader(path string, mode JSONMode) *JSONLoader {
	return NewJSONLoaderWithFS(DefaultFS(), path, mode)
}

// NewJSONLoaderWithFS creates a JSON loader with a custom file system.
func NewJSONLoaderWithFS(fs FileSystem, path string, mode JSONMode) *JSONLoader {
	return &JSONLoader{fs: fs, path: path, mode: mode}
}

// Load reads configuration from the configured path.
func (l *JSONLoader) Load() (*Document, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads configuration from a specific path.
func (l *JSONLoader) LoadFrom(path string) (*Document, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return l.parse(path, data)
}

func (l *JSONLoader) parse(source string, data []byte) (*Document, error) {
	data = jsonc.ToJSON(data)
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Path: source, Message: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)

	switch l.mode {
	case JSONTSConfig:
		doc := &Document{Source: source}
		if opts := root.Get("tywaOptions"); opts.Exists() {
			var err error
			if doc, err = decodeJSONOptions(source, opts); err != nil {
				return nil, err
			}
		}
		if co := root.Get("compilerOptions"); co.Exists() {
			doc.Compiler = decodeJSONCompilerOptions(co)
		}
		return doc, nil

	case JSONPackage:
		opts := root.Get("tywa")
		if !opts.Exists() {
			return nil, &FieldError{Path: source, Field: "tywa", Want: "defined in package.json"}
		}
		return decodeJSONOptions(source, opts)

	case JSONCompilerOnly:
		doc := &Document{Source: source}
		if co := root.Get("compilerOptions"); co.Exists() {
			doc.Compiler = decodeJSONCompilerOptions(co)
		}
		return doc, nil

	default:
		return decodeJSONOptions(source, root)
	}
}

func decodeJSONOptions(source string, r gjson.Result) (*Document, error) {
	if !r.IsObject() {
		return nil, &FieldError{Path: source, Field: "(root)", Want: "an object"}
	}

	doc := &Document{
		Source:         source,
		HasOptions:     true,
		OutDir:         r.Get("outDir").String(),
		RootDir:        r.Get("rootDir").String(),
		MainOutputFile: r.Get("mainOutputFile").String(),
		TSConfig:       r.Get("tsconfig").String(),
		Runtime:        r.Get("runtime").String(),
		LogLevel:       r.Get("logLevel").String(),
	}
	doc.ShutdownTimeout = jsonDuration(r.Get("shutdownTimeout"))
	doc.Debounce = jsonDuration(r.Get("debounce"))

	if p := r.Get("paths"); p.Exists() {
		paths, err := decodeJSONPaths(source, p)
		if err != nil {
			return nil, err
		}
		doc.Paths = paths
		doc.HasPaths = true
	}

	if u := r.Get("unWatchedDirectories"); u.Exists() {
		if !u.IsArray() {
			return nil, &FieldError{Path: source, Field: "unWatchedDirectories", Want: "an array of strings"}
		}
		dirs := []string{}
		for _, item := range u.Array() {
			dirs = append(dirs, item.String())
		}
		doc.UnwatchedDirectories = dirs
	}

	return doc, nil
}

func decodeJSONCompilerOptions(r gjson.Result) *CompilerOptions {
	co := &CompilerOptions{
		OutDir:  r.Get("outDir").String(),
		RootDir: r.Get("rootDir").String(),
	}
	if p := r.Get("paths"); p.Exists() {
		if paths, err := decodeJSONPaths("compilerOptions", p); err == nil {
			co.Paths = paths
			co.HasPaths = true
		}
	}
	return co
}

// decodeJSONPaths walks the paths object in document order.
func decodeJSONPaths(source string, p gjson.Result) ([]PathAlias, error) {
	if !p.IsObject() {
		return nil, &FieldError{Path: source, Field: "paths", Want: "an object of alias to target list"}
	}

	var paths []PathAlias
	var err error
	p.ForEach(func(key, value gjson.Result) bool {
		alias := PathAlias{Pattern: key.String()}
		switch {
		case value.IsArray():
			for _, t := range value.Array() {
				alias.Targets = append(alias.Targets, t.String())
			}
		case value.Type == gjson.String:
			alias.Targets = []string{value.String()}
		default:
			err = &FieldError{Path: source, Field: "paths." + key.String(), Want: "a string or array of strings"}
			return false
		}
		paths = append(paths, alias)
		return true
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// jsonDuration accepts "10s"-style strings or a number of milliseconds.
func jsonDuration(r gjson.Result) string {
	switch r.Type {
	case gjson.Number:
		return strconv.FormatInt(r.Int(), 10) + "ms"
	case gjson.String:
		return r.String()
	default:
		return ""
	}
}
