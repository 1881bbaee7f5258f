package loader

import (
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// EnvLoader loads configuration overrides from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "TYWA_")
	mapping map[string]string // Env var -> option name
	lookup  func(string) (string, bool)
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "TYWA_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		lookup:  os.LookupEnv,
	}
}

// NewEnvLoaderWithLookup creates a loader reading variables through lookup.
func NewEnvLoaderWithLookup(prefix string, lookup func(string) (string, bool)) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.lookup = lookup
	return l
}

// defaultEnvMapping returns the default environment variable mappings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "OUT_DIR":               "outDir",
		prefix + "ROOT_DIR":              "rootDir",
		prefix + "PATHS":                 "paths",
		prefix + "UNWATCHED_DIRECTORIES": "unWatchedDirectories",
		prefix + "MAIN_OUTPUT_FILE":      "mainOutputFile",
		prefix + "TSCONFIG":              "tsconfig",
		prefix + "RUNTIME":               "runtime",
		prefix + "SHUTDOWN_TIMEOUT":      "shutdownTimeout",
		prefix + "DEBOUNCE":              "debounce",
		prefix + "LOG_LEVEL":             "logLevel",
	}
}

// Load reads environment variables and returns an overlay Document.
// Returns nil, nil when no mapped variable is set.
// Note: Empty string values are treated as unset.
func (l *EnvLoader) Load() (*Document, error) {
	doc := &Document{Source: "<env>"}
	found := false

	for env, option := range l.mapping {
		val, ok := l.lookup(env)
		if !ok || val == "" {
			continue
		}
		found = true

		switch option {
		case "outDir":
			doc.OutDir = val
		case "rootDir":
			doc.RootDir = val
		case "mainOutputFile":
			doc.MainOutputFile = val
		case "tsconfig":
			doc.TSConfig = val
		case "runtime":
			doc.Runtime = val
		case "shutdownTimeout":
			doc.ShutdownTimeout = val
		case "debounce":
			doc.Debounce = val
		case "logLevel":
			doc.LogLevel = val
		case "unWatchedDirectories":
			doc.UnwatchedDirectories = parseList(val)
		case "paths":
			if !gjson.Valid(val) {
				return nil, &ParseError{Path: env, Message: "expected a JSON object of alias to target list"}
			}
			paths, err := decodeJSONPaths(env, gjson.Parse(val))
			if err != nil {
				return nil, err
			}
			doc.Paths = paths
			doc.HasPaths = true
		}
	}

	if !found {
		return nil, nil
	}
	return doc, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, option string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = option
}

// parseList accepts a JSON array or a comma-separated list.
func parseList(s string) []string {
	if strings.HasPrefix(strings.TrimSpace(s), "[") && gjson.Valid(s) {
		var out []string
		for _, item := range gjson.Parse(s).Array() {
			out = append(out, item.String())
		}
		return out
	}

	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
