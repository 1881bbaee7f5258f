package loader

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// decodeMap turns a generic decoded map (TOML, or YAML scalars) into a
// Document. Ordered path lists are taken as-is; unordered path tables are
// sorted by pattern with a warning.
func decodeMap(source string, raw map[string]any) (*Document, error) {
	doc := &Document{Source: source, HasOptions: true}

	var err error
	field := func(key string, duration bool) string {
		v, ok := raw[key]
		if !ok || err != nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		if duration {
			if s, ok := durationString(v); ok {
				return s
			}
			err = &FieldError{Path: source, Field: key, Want: "a duration string or milliseconds"}
			return ""
		}
		err = &FieldError{Path: source, Field: key, Want: "a string"}
		return ""
	}

	doc.OutDir = field("outDir", false)
	doc.RootDir = field("rootDir", false)
	doc.MainOutputFile = field("mainOutputFile", false)
	doc.TSConfig = field("tsconfig", false)
	doc.Runtime = field("runtime", false)
	doc.ShutdownTimeout = field("shutdownTimeout", true)
	doc.Debounce = field("debounce", true)
	doc.LogLevel = field("logLevel", false)
	if err != nil {
		return nil, err
	}

	if v, ok := raw["unWatchedDirectories"]; ok {
		dirs, ok := stringList(v)
		if !ok {
			return nil, &FieldError{Path: source, Field: "unWatchedDirectories", Want: "an array of strings"}
		}
		doc.UnwatchedDirectories = dirs
	}

	if v, ok := raw["paths"]; ok {
		paths, sorted, err := decodePaths(source, v)
		if err != nil {
			return nil, err
		}
		if sorted {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("%s: paths given as a table; aliases are applied in sorted order", source))
		}
		doc.Paths = paths
		doc.HasPaths = true
	}

	return doc, nil
}

func decodePaths(source string, v any) ([]PathAlias, bool, error) {
	switch p := v.(type) {
	case []any:
		paths := make([]PathAlias, 0, len(p))
		for i, item := range p {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, false, &FieldError{Path: source, Field: fmt.Sprintf("paths[%d]", i), Want: "a table with alias and targets"}
			}
			alias, ok := entry["alias"].(string)
			if !ok || alias == "" {
				return nil, false, &FieldError{Path: source, Field: fmt.Sprintf("paths[%d].alias", i), Want: "a non-empty string"}
			}
			targets, ok := stringList(entry["targets"])
			if !ok {
				return nil, false, &FieldError{Path: source, Field: fmt.Sprintf("paths[%d].targets", i), Want: "a string or array of strings"}
			}
			paths = append(paths, PathAlias{Pattern: alias, Targets: targets})
		}
		return paths, false, nil

	case map[string]any:
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		paths := make([]PathAlias, 0, len(p))
		for _, k := range keys {
			targets, ok := stringList(p[k])
			if !ok {
				return nil, false, &FieldError{Path: source, Field: "paths." + k, Want: "a string or array of strings"}
			}
			paths = append(paths, PathAlias{Pattern: k, Targets: targets})
		}
		return paths, len(paths) > 1, nil

	default:
		return nil, false, &FieldError{Path: source, Field: "paths", Want: "a table or array of tables"}
	}
}

func stringList(v any) ([]string, bool) {
	switch val := v.(type) {
	case string:
		return []string{val}, true
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// durationString renders a numeric value as milliseconds.
func durationString(v any) (string, bool) {
	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10) + "ms", true
	case int:
		return strconv.Itoa(val) + "ms", true
	case float64:
		return strconv.FormatInt(int64(val), 10) + "ms", true
	case time.Duration:
		return val.String(), true
	default:
		return "", false
	}
}
