package loader

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned by ForPath for unknown file types.
var ErrUnsupportedFormat = errors.New("config file must be a json, toml, yaml, lua or `.tywa` file")

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FieldError reports a field holding a value of the wrong shape.
type FieldError struct {
	Path  string
	Field string
	Want  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q must be %s", e.Path, e.Field, e.Want)
}
