package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, w Watcher, path string, timeout time.Duration) (Event, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-w.Events():
			if !ok {
				return Event{}, false
			}
			if e.Path == path {
				return e, true
			}
		case <-deadline:
			return Event{}, false
		}
	}
}

func TestFSNotifyWatcher_WatchRecursive(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a/b", "node_modules/pkg", ".git"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	w, err := NewFSNotifyWatcher()
	if err != nil {
		t.Fatalf("NewFSNotifyWatcher error = %v", err)
	}
	defer w.Close()

	if err := w.WatchRecursive(root); err != nil {
		t.Fatalf("WatchRecursive error = %v", err)
	}
	// root, a, a/b
	if n := w.WatchedDirs(); n != 3 {
		t.Errorf("WatchedDirs = %d, want 3", n)
	}
}

func TestFSNotifyWatcher_WatchNonexistent(t *testing.T) {
	w, err := NewFSNotifyWatcher()
	if err != nil {
		t.Fatalf("NewFSNotifyWatcher error = %v", err)
	}
	defer w.Close()

	if err := w.WatchRecursive(filepath.Join(t.TempDir(), "missing")); err != ErrPathNotExist {
		t.Errorf("WatchRecursive error = %v, want ErrPathNotExist", err)
	}
}

func TestFSNotifyWatcher_WriteEvent(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "index.ts")
	if err := os.WriteFile(file, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewFSNotifyWatcher()
	if err != nil {
		t.Fatalf("NewFSNotifyWatcher error = %v", err)
	}
	defer w.Close()
	if err := w.WatchRecursive(root); err != nil {
		t.Fatalf("WatchRecursive error = %v", err)
	}

	if err := os.WriteFile(file, []byte("export const a = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	e, ok := waitForEvent(t, w, file, 2*time.Second)
	if !ok {
		t.Fatal("expected write event")
	}
	if !e.Op.Has(OpWrite) {
		t.Errorf("Op = %v, want WRITE", e.Op)
	}
}

func TestFSNotifyWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()

	w, err := NewFSNotifyWatcher()
	if err != nil {
		t.Fatalf("NewFSNotifyWatcher error = %v", err)
	}
	defer w.Close()
	if err := w.WatchRecursive(root); err != nil {
		t.Fatalf("WatchRecursive error = %v", err)
	}

	sub := filepath.Join(root, "commands")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.WatchedDirs() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := w.WatchedDirs(); n != 2 {
		t.Fatalf("WatchedDirs = %d, want 2 after mkdir", n)
	}

	file := filepath.Join(sub, "ping.ts")
	if err := os.WriteFile(file, []byte("export {}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := waitForEvent(t, w, file, 2*time.Second); !ok {
		t.Fatal("expected event for file in new directory")
	}
}

func TestFSNotifyWatcher_FilterAndIgnore(t *testing.T) {
	root := t.TempDir()
	filter, err := NewGlobFilter(root, []string{"**.ts"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewFSNotifyWatcher(WithFilter(filter.Filter()), WithIgnore("*.swp"))
	if err != nil {
		t.Fatalf("NewFSNotifyWatcher error = %v", err)
	}
	defer w.Close()
	if err := w.WatchRecursive(root); err != nil {
		t.Fatalf("WatchRecursive error = %v", err)
	}

	for _, name := range []string{"notes.md", "a.ts.swp", "a.ts"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	e, ok := waitForEvent(t, w, filepath.Join(root, "a.ts"), 2*time.Second)
	if !ok {
		t.Fatal("expected event for a.ts")
	}
	if e.Path != filepath.Join(root, "a.ts") {
		t.Errorf("first event path = %q", e.Path)
	}
}

func TestFSNotifyWatcher_Close(t *testing.T) {
	w, err := NewFSNotifyWatcher()
	if err != nil {
		t.Fatalf("NewFSNotifyWatcher error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if err := w.WatchRecursive(t.TempDir()); err != ErrWatcherClosed {
		t.Errorf("WatchRecursive after Close error = %v, want ErrWatcherClosed", err)
	}
}
