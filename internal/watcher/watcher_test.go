package watcher

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("test error")

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
		{OpCreate | OpWrite, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOp_Changed(t *testing.T) {
	tests := []struct {
		op   Op
		want bool
	}{
		{OpWrite, true},
		{OpCreate, true},
		{OpCreate | OpWrite | OpChmod, true},
		{OpChmod, false},
		{OpRemove, false},
		{OpWrite | OpRemove, false},
		{OpRename, false},
	}
	for _, tt := range tests {
		if got := tt.op.Changed(); got != tt.want {
			t.Errorf("Op(%d).Changed() = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func TestRelay(t *testing.T) {
	mock := newMockWatcher()
	mock.send("/src/a.ts", OpWrite)
	mock.errors <- errTest
	mock.Close()

	var events []Event
	var errs []error
	Relay(context.Background(), mock, func(e Event) { events = append(events, e) }, func(err error) { errs = append(errs, err) })

	if len(events) != 1 || events[0].Path != "/src/a.ts" {
		t.Errorf("events = %+v, want one for /src/a.ts", events)
	}
	if len(errs) != 1 {
		t.Errorf("errors = %v, want one", errs)
	}
}

func TestRelay_StopsOnCancel(t *testing.T) {
	mock := newMockWatcher()
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Relay(ctx, mock, func(Event) {}, nil)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Relay did not return after cancel")
	}
}
