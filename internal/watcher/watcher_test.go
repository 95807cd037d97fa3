package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changes []string
	removes []string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	r.changes = append(r.changes, path)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) onRemove(path string) {
	r.mu.Lock()
	r.removes = append(r.removes, path)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher callback")
	}
}

func (r *recorder) changedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...)
}

func (r *recorder) removedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removes...)
}

func startWatcher(t *testing.T, root string, rec *recorder) *Watcher {
	t.Helper()
	w := New(root, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func contains(paths []string, want string) bool {
	for _, p := range paths {
		if p == want {
			return true
		}
	}
	return false
}

func TestWatcher_ReportsNewFile(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, root, rec)

	path := filepath.Join(root, "note.md")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)
	if !contains(rec.changedPaths(), path) {
		t.Errorf("change for %s not reported: %v", path, rec.changedPaths())
	}
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "note.md")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	startWatcher(t, root, rec)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)
	if !contains(rec.removedPaths(), path) {
		t.Errorf("removal of %s not reported: %v", path, rec.removedPaths())
	}
}

func TestWatcher_CoalescesWriteBursts(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, root, rec)

	path := filepath.Join(root, "burst.md")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("draft"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rec.wait(t)
	// Let any stray timers fire before counting.
	time.Sleep(200 * time.Millisecond)
	if n := len(rec.changedPaths()); n != 1 {
		t.Errorf("burst of writes produced %d callbacks, want 1", n)
	}
}

func TestWatcher_PicksUpNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	startWatcher(t, root, rec)

	sub := filepath.Join(root, "topic")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(sub, "nested.md")
	// Give the watcher a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("nested"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)
	if !contains(rec.changedPaths(), path) {
		t.Errorf("change in new subdirectory not reported: %v", rec.changedPaths())
	}
}

func TestWatcher_IgnoresHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	hidden := filepath.Join(root, ".git")
	if err := os.Mkdir(hidden, 0o755); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	startWatcher(t, root, rec)

	if err := os.WriteFile(filepath.Join(hidden, "config"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	visible := filepath.Join(root, "seen.md")
	if err := os.WriteFile(visible, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)
	for _, p := range rec.changedPaths() {
		if filepath.Dir(p) == hidden {
			t.Errorf("hidden path reported: %s", p)
		}
	}
	if !contains(rec.changedPaths(), visible) {
		t.Errorf("visible file not reported: %v", rec.changedPaths())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	w := startWatcher(t, root, rec)
	w.Stop()
	w.Stop()
}
