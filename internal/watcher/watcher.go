// Package watcher reports changes to source files.
//
// FSNotifyWatcher watches a directory tree through fsnotify, skipping ignored
// directories and keeping only events that pass its filter. DebouncedWatcher
// coalesces rapid changes to one path into a single event, so an editor's
// write-rename-chmod sequence triggers one rebuild.
package watcher

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed away.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Changed reports whether the file has new content: it was created or
// written and not removed afterward.
func (op Op) Changed() bool {
	return (op.Has(OpCreate) || op.Has(OpWrite)) && !op.Has(OpRemove) && !op.Has(OpRename)
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file.
	Path string

	// Op holds every operation coalesced into this event.
	Op Op

	// Timestamp is when the last operation occurred.
	Timestamp time.Time
}

// Watcher monitors file system changes.
type Watcher interface {
	// WatchRecursive starts watching a directory and all subdirectories.
	// Returns ErrPathNotExist if the path doesn't exist.
	WatchRecursive(path string) error

	// Events returns the channel of file change events.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of watcher errors.
	// The channel is closed when the watcher is closed.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Handler is a function that handles file system events.
type Handler func(event Event)

// ErrorHandler is a function that handles watcher errors.
type ErrorHandler func(err error)

// EventFilter is a function that filters events.
// Return true to keep the event, false to discard it.
type EventFilter func(event Event) bool

// Config holds watcher configuration options.
type Config struct {
	// BufferSize is the size of the event and error channels.
	// Default: 100
	BufferSize int

	// Ignore lists directory and file patterns that are never reported.
	// Patterns are matched against slash-separated paths relative to the
	// watched root (see Ignore).
	Ignore []string

	// IgnoreHidden ignores files and directories starting with a dot.
	// Default: true
	IgnoreHidden bool

	// Filter is an optional filter for events.
	Filter EventFilter
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:   100,
		Ignore:       []string{"node_modules"},
		IgnoreHidden: true,
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithIgnore appends ignore patterns.
func WithIgnore(patterns ...string) Option {
	return func(c *Config) {
		c.Ignore = append(c.Ignore, patterns...)
	}
}

// WithFilter sets the event filter.
func WithFilter(filter EventFilter) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// Relay delivers events and errors from w to the handlers until ctx is
// cancelled or w is closed.
func Relay(ctx context.Context, w Watcher, onEvent Handler, onError ErrorHandler) {
	events, errs := w.Events(), w.Errors()
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			onEvent(event)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
