package watcher

import (
	"errors"
	"sync"
	"time"
)

// DefaultDebounce is used when a non-positive delay is given.
const DefaultDebounce = 100 * time.Millisecond

// DebouncedWatcher wraps a Watcher with per-path event debouncing.
// Operations on one path within the delay window are merged into a single
// event, delivered once the path has been quiet for the delay.
type DebouncedWatcher struct {
	inner Watcher
	delay time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	events   chan Event
	errors   chan error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// NewDebouncedWatcher creates a debounced watcher wrapper.
func NewDebouncedWatcher(inner Watcher, delay time.Duration) *DebouncedWatcher {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	dw := &DebouncedWatcher{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 100),
		closeCh: make(chan struct{}),
	}

	dw.closedWg.Add(1)
	go dw.processLoop()

	return dw
}

// WatchRecursive starts watching a directory recursively.
func (dw *DebouncedWatcher) WatchRecursive(path string) error {
	return dw.inner.WatchRecursive(path)
}

// Events returns the debounced event channel.
func (dw *DebouncedWatcher) Events() <-chan Event {
	return dw.events
}

// Errors returns the error channel.
func (dw *DebouncedWatcher) Errors() <-chan error {
	return dw.errors
}

// Close stops the debounced watcher and the inner watcher. Pending events are
// discarded.
func (dw *DebouncedWatcher) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	close(dw.closeCh)

	for path, p := range dw.pending {
		p.timer.Stop()
		delete(dw.pending, path)
	}
	dw.mu.Unlock()

	err := dw.inner.Close()
	dw.closedWg.Wait()

	// Timers that fired before Stop may still be sending.
	dw.mu.Lock()
	close(dw.events)
	close(dw.errors)
	dw.mu.Unlock()

	return err
}

func (dw *DebouncedWatcher) processLoop() {
	defer dw.closedWg.Done()

	events, errs := dw.inner.Events(), dw.inner.Errors()
	for events != nil || errs != nil {
		select {
		case <-dw.closeCh:
			return

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			dw.handleEvent(event)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			dw.forwardError(err)
		}
	}
}

// handleEvent merges event into the pending entry for its path and restarts
// the path's timer.
func (dw *DebouncedWatcher) handleEvent(event Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.closed {
		return
	}

	if p, exists := dw.pending[event.Path]; exists {
		p.event.Op |= event.Op
		p.event.Timestamp = event.Timestamp
		p.timer.Reset(dw.delay)
		return
	}

	path := event.Path
	dw.pending[path] = &pendingEvent{
		event: event,
		timer: time.AfterFunc(dw.delay, func() { dw.fire(path) }),
	}
}

// fire delivers the pending event for path. A file created and removed
// within one window never existed as far as consumers are concerned.
func (dw *DebouncedWatcher) fire(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	p, exists := dw.pending[path]
	if !exists || dw.closed {
		return
	}
	delete(dw.pending, path)

	op := p.event.Op
	if op.Has(OpCreate) && (op.Has(OpRemove) || op.Has(OpRename)) {
		return
	}

	select {
	case dw.events <- p.event:
	default:
		dw.forwardErrorLocked(errors.New("event channel full, dropping event for " + path))
	}
}

func (dw *DebouncedWatcher) forwardError(err error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if !dw.closed {
		dw.forwardErrorLocked(err)
	}
}

func (dw *DebouncedWatcher) forwardErrorLocked(err error) {
	select {
	case dw.errors <- err:
	default:
	}
}

// Ensure DebouncedWatcher implements Watcher.
var _ Watcher = (*DebouncedWatcher)(nil)
