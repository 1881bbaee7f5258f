package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration resolution.
var (
	// ErrConfigNotFound indicates the --config file doesn't exist.
	ErrConfigNotFound = errors.New("config file does not exist")

	// ErrConfigIsDirectory indicates the --config path names a directory.
	ErrConfigIsDirectory = errors.New("config file path is a directory")

	// ErrOutDirUndefined indicates no source defined outDir.
	ErrOutDirUndefined = errors.New("output directory is not defined")

	// ErrRootDirUndefined indicates no source defined rootDir.
	ErrRootDirUndefined = errors.New("root directory is not defined")

	// ErrMainOutputUndefined indicates watch mode without mainOutputFile.
	ErrMainOutputUndefined = errors.New("main output file is not defined")

	// ErrUnsafeOutDir indicates an outDir that a clean build must not delete.
	ErrUnsafeOutDir = errors.New("output directory must be a subdirectory of the project that does not contain the root directory")
)

// Error is a configuration error. It is fatal: the build never starts.
type Error struct {
	Op   string // Phase (e.g., "load", "parse", "validate")
	Path string // Config file or field involved
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}
