package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/testutil"
	"github.com/brianly1003/dirfilter/internal/tree"
)

// countingStore records rescans and reports a change on each one.
type countingStore struct {
	mu    sync.Mutex
	calls int
	root  *tree.Directory
}

func (s *countingStore) Rescan(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return true, nil
}

func (s *countingStore) Current() *tree.Directory {
	return s.root
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fileChanges(hub *testutil.MockEventHub) []events.FileChangedPayload {
	var out []events.FileChangedPayload
	for _, e := range hub.EventsOfType(events.EventTypeFileChanged) {
		out = append(out, e.Payload.(events.FileChangedPayload))
	}
	return out
}

func TestHandleDebouncedEvent_PublishesFileChange(t *testing.T) {
	hub := testutil.NewMockEventHub()
	w := NewWatcher(t.TempDir(), nil, hub, nil, 10)

	w.handleDebouncedEvent("file.txt", events.FileChangeModified)

	changes := fileChanges(hub)
	if len(changes) != 1 {
		t.Fatalf("file_changed events = %d, want 1", len(changes))
	}
	if changes[0].Path != "file.txt" || changes[0].Change != events.FileChangeModified {
		t.Errorf("payload = %+v", changes[0])
	}
	if len(w.rescan) != 0 {
		t.Error("a modification should not request a rescan")
	}
}

func TestHandleDebouncedEvent_StructuralChangeRequestsRescan(t *testing.T) {
	hub := testutil.NewMockEventHub()
	w := NewWatcher(t.TempDir(), nil, hub, nil, 10)

	w.handleDebouncedEvent("a.txt", events.FileChangeCreated)
	w.handleDebouncedEvent("b.txt", events.FileChangeDeleted)

	if len(w.rescan) != 1 {
		t.Errorf("queued rescans = %d, want 1 (requests coalesce)", len(w.rescan))
	}
}

func TestHandleDebouncedEvent_Rename(t *testing.T) {
	hub := testutil.NewMockEventHub()
	w := NewWatcher(t.TempDir(), nil, hub, nil, 10)

	w.pendingRenames["docs"] = pendingRename{oldPath: "docs/old.md", timestamp: time.Now()}
	w.handleDebouncedEvent("docs/new.md", events.FileChangeCreated)

	changes := fileChanges(hub)
	if len(changes) != 1 {
		t.Fatalf("file_changed events = %d, want 1", len(changes))
	}
	if changes[0].Change != events.FileChangeRenamed || changes[0].OldPath != "docs/old.md" || changes[0].Path != "docs/new.md" {
		t.Errorf("payload = %+v, want rename docs/old.md -> docs/new.md", changes[0])
	}
	if len(w.pendingRenames) != 0 {
		t.Error("pending rename should be consumed")
	}
}

func TestProcessStalePendingRenames(t *testing.T) {
	hub := testutil.NewMockEventHub()
	w := NewWatcher(t.TempDir(), nil, hub, nil, 10)

	w.pendingRenames["."] = pendingRename{oldPath: "gone.txt", timestamp: time.Now().Add(-2 * renameWindow)}
	w.pendingRenames["src"] = pendingRename{oldPath: "src/fresh.go", timestamp: time.Now()}

	w.processStalePendingRenames()

	changes := fileChanges(hub)
	if len(changes) != 1 || changes[0].Path != "gone.txt" || changes[0].Change != events.FileChangeDeleted {
		t.Errorf("changes = %+v, want a single deletion of gone.txt", changes)
	}
	if _, ok := w.pendingRenames["src"]; !ok {
		t.Error("fresh pending rename should be kept")
	}
	if len(w.rescan) != 1 {
		t.Error("stale rename should request a rescan")
	}
}

func TestRescanTree_PublishesTreeChanged(t *testing.T) {
	hub := testutil.NewMockEventHub()
	store := &countingStore{root: testutil.BuildTree("a/b.txt", "c.txt")}
	w := NewWatcher(t.TempDir(), nil, hub, store, 10)

	w.rescanTree(context.Background())

	changed := hub.EventsOfType(events.EventTypeTreeChanged)
	if len(changed) != 1 {
		t.Fatalf("tree_changed events = %d, want 1", len(changed))
	}
	payload := changed[0].Payload.(events.TreeChangedPayload)
	if payload.TotalFiles != 2 || payload.TotalDirectories != 1 {
		t.Errorf("payload = %+v, want 2 files and 1 directory", payload)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, testutil.NewMockEventHub(), nil, 10)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_RescansTreeOnCreate(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, "src/main.go")

	scanner, err := tree.NewScanner(root, tree.ScannerOptions{IgnorePatterns: []string{"*.tmp"}})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	store, err := tree.Load(context.Background(), scanner)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	hub := testutil.NewMockEventHub()
	w := NewWatcher(scanner.RootPath(), scanner, hub, store, 10)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	testutil.WriteFiles(t, root, "src/util.go", "scratch.tmp")

	select {
	case <-store.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for tree change")
	}

	if got := store.Current().FileCount(); got != 2 {
		t.Errorf("FileCount() = %d, want 2 (ignored file excluded)", got)
	}
	testutil.Eventually(t, time.Second, func() bool {
		return len(hub.EventsOfType(events.EventTypeTreeChanged)) >= 1
	}, "tree_changed published")

	for _, c := range fileChanges(hub) {
		if c.Path == "scratch.tmp" {
			t.Error("ignored file should not produce file_changed")
		}
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	scanner, err := tree.NewScanner(root, tree.ScannerOptions{})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	store, err := tree.Load(context.Background(), scanner)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	hub := testutil.NewMockEventHub()
	w := NewWatcher(scanner.RootPath(), scanner, hub, store, 10)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	if err := os.Mkdir(filepath.Join(root, "pkg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Wait for the directory's own creation to be seen and watched.
	testutil.Eventually(t, 3*time.Second, func() bool {
		for _, c := range fileChanges(hub) {
			if c.Path == "pkg" {
				return true
			}
		}
		return false
	}, "pkg creation observed")

	testutil.WriteFiles(t, root, "pkg/new.go")

	testutil.Eventually(t, 3*time.Second, func() bool {
		return store.Current().FileCount() == 1
	}, "file in new directory picked up")
}
