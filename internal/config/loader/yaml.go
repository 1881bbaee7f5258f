package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLLoader loads configuration from YAML files. A `paths` mapping keeps
// its document order.
type YAMLLoader struct {
	fs   FileSystem
	path string
}

// NewYAMLLoader creates a new YAML loader for the given path.
func NewYAMLLoader(path string) *YAMLLoader {
	return NewYAMLLoaderWithFS(DefaultFS(), path)
}

// NewYAMLLoaderWithFS creates a YAML loader with a custom file system.
func NewYAMLLoaderWithFS(fs FileSystem, path string) *YAMLLoader {
	return &YAMLLoader{fs: fs, path: path}
}

// Load reads configuration from the configured path.
func (l *YAMLLoader) Load() (*Document, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads configuration from a specific path.
func (l *YAMLLoader) LoadFrom(path string) (*Document, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return l.parse(path, data)
}

func (l *YAMLLoader) parse(source string, data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	if len(root.Content) == 0 {
		return &Document{Source: source}, nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, &ParseError{Path: source, Line: top.Line, Column: top.Column, Message: "top level must be a mapping"}
	}

	var raw map[string]any
	if err := top.Decode(&raw); err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}

	doc, err := decodeMap(source, raw)
	if err != nil {
		return nil, err
	}

	if paths := mappingValue(top, "paths"); paths != nil && paths.Kind == yaml.MappingNode {
		ordered, err := orderedYAMLPaths(source, paths)
		if err != nil {
			return nil, err
		}
		doc.Paths = ordered
		doc.Warnings = nil
	}

	return doc, nil
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func orderedYAMLPaths(source string, m *yaml.Node) ([]PathAlias, error) {
	paths := make([]PathAlias, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i], m.Content[i+1]
		alias := PathAlias{Pattern: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			alias.Targets = []string{val.Value}
		case yaml.SequenceNode:
			for _, item := range val.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, &FieldError{Path: source, Field: "paths." + key.Value, Want: "a string or list of strings"}
				}
				alias.Targets = append(alias.Targets, item.Value)
			}
		default:
			return nil, &FieldError{Path: source, Field: "paths." + key.Value, Want: "a string or list of strings"}
		}
		paths = append(paths, alias)
	}
	return paths, nil
}
