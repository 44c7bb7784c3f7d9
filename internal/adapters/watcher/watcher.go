// Package watcher implements the file system watcher using fsnotify.
//
// Raw fsnotify events are debounced per path and published as file_changed
// events. Structural changes (creations, deletions, renames) also trigger a
// rescan of the directory tree, so the continuous filter sees the new shape.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/domain/ports"
	"github.com/brianly1003/dirfilter/internal/tree"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// renameWindow is how long a RENAME waits for the matching CREATE.
const renameWindow = time.Second

// IgnoreMatcher decides whether a root-relative path is outside the tree.
type IgnoreMatcher interface {
	IsIgnored(relPath string) bool
}

// TreeRescanner rebuilds the directory tree on demand.
type TreeRescanner interface {
	Rescan(ctx context.Context) (bool, error)
	Current() *tree.Directory
}

// pendingRename tracks a file that was renamed (we have the old path but not the new one yet)
type pendingRename struct {
	oldPath   string
	timestamp time.Time
}

// Watcher implements the FileWatcher port interface.
type Watcher struct {
	rootPath   string
	ignore     IgnoreMatcher
	publisher  ports.EventPublisher
	store      TreeRescanner
	debounceMS int

	mu      sync.RWMutex
	watcher *fsnotify.Watcher
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	debouncer *Debouncer

	// rescan holds at most one queued rescan request
	rescan chan struct{}

	// Rename tracking: maps directory -> pending rename info
	pendingRenames   map[string]pendingRename
	pendingRenamesMu sync.Mutex
}

// NewWatcher creates a new file system watcher. ignore and store may be nil;
// without a store no rescans are performed.
func NewWatcher(rootPath string, ignore IgnoreMatcher, publisher ports.EventPublisher, store TreeRescanner, debounceMS int) *Watcher {
	return &Watcher{
		rootPath:       rootPath,
		ignore:         ignore,
		publisher:      publisher,
		store:          store,
		debounceMS:     debounceMS,
		rescan:         make(chan struct{}, 1),
		pendingRenames: make(map[string]pendingRename),
	}
}

// Start begins watching the root directory.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.debouncer = NewDebouncer(time.Duration(w.debounceMS)*time.Millisecond, w.handleDebouncedEvent)

	w.running = true
	w.mu.Unlock()

	if err := w.addWatchRecursive(w.rootPath); err != nil {
		_ = w.Stop()
		return err
	}

	w.wg.Add(3)
	go w.eventLoop(watchCtx, watcher)
	go w.rescanLoop(watchCtx)
	// On macOS, file deletions often come as RENAME events without a following CREATE
	go w.pendingRenameCleanup(watchCtx)

	log.Info().
		Str("path", w.rootPath).
		Int("debounce_ms", w.debounceMS).
		Msg("file watcher started")

	return nil
}

// Stop terminates file watching and waits for the background loops to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false

	if w.cancel != nil {
		w.cancel()
	}
	if w.debouncer != nil {
		w.debouncer.Stop()
	}

	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
		w.watcher = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
	log.Info().Msg("file watcher stopped")
	return err
}

// IsRunning returns true if the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// addWatchRecursive adds watches to a directory and all subdirectories.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files/dirs we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootPath && w.shouldIgnore(w.relPath(path)) {
			return filepath.SkipDir
		}

		w.mu.RLock()
		watcher := w.watcher
		w.mu.RUnlock()
		if watcher == nil {
			return filepath.SkipAll
		}

		if err := watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
		}
		return nil
	})
}

// eventLoop handles fsnotify events.
func (w *Watcher) eventLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// rescanLoop rebuilds the tree once per queued request. Requests raised while
// a rescan runs collapse into a single follow-up rescan.
func (w *Watcher) rescanLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.rescan:
			w.rescanTree(ctx)
		}
	}
}

func (w *Watcher) rescanTree(ctx context.Context) {
	if w.store == nil {
		return
	}

	start := time.Now()
	changed, err := w.store.Rescan(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("tree rescan failed")
		}
		return
	}
	if !changed {
		log.Debug().Dur("elapsed", time.Since(start)).Msg("tree rescan found no structural change")
		return
	}

	root := w.store.Current()
	w.publisher.Publish(events.NewTreeChangedEvent(root.FileCount(), root.DirCount()))
	log.Debug().
		Int("files", root.FileCount()).
		Dur("elapsed", time.Since(start)).
		Msg("tree rescanned")
}

// requestRescan queues a rescan without blocking.
func (w *Watcher) requestRescan() {
	select {
	case w.rescan <- struct{}{}:
	default:
	}
}

// pendingRenameCleanup periodically checks for stale pending renames and treats them as deletions.
func (w *Watcher) pendingRenameCleanup(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processStalePendingRenames()
		}
	}
}

// processStalePendingRenames treats pending renames older than renameWindow as deletions.
func (w *Watcher) processStalePendingRenames() {
	w.pendingRenamesMu.Lock()
	var stale []string
	now := time.Now()
	for dir, pending := range w.pendingRenames {
		if now.Sub(pending.timestamp) > renameWindow {
			delete(w.pendingRenames, dir)
			stale = append(stale, pending.oldPath)
		}
	}
	w.pendingRenamesMu.Unlock()

	for _, path := range stale {
		log.Debug().Str("path", path).Msg("stale pending rename treated as deletion")
		w.publisher.Publish(events.NewFileChangedEvent(path, events.FileChangeDeleted))
	}
	if len(stale) > 0 {
		w.requestRescan()
	}
}

// handleEvent processes a single fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath := w.relPath(event.Name)
	if w.shouldIgnore(relPath) {
		return
	}

	var changeType events.FileChangeType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		changeType = events.FileChangeCreated
		// New directories need their own watches
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addWatchRecursive(event.Name)
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		changeType = events.FileChangeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		changeType = events.FileChangeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// Matched with a CREATE in the same directory once debounced
		dir := filepath.Dir(relPath)
		w.pendingRenamesMu.Lock()
		w.pendingRenames[dir] = pendingRename{
			oldPath:   relPath,
			timestamp: time.Now(),
		}
		w.pendingRenamesMu.Unlock()
		log.Debug().Str("old_path", relPath).Str("dir", dir).Msg("tracking pending rename")
		return
	default:
		return // Chmod and friends do not change the tree
	}

	w.mu.RLock()
	debouncer := w.debouncer
	w.mu.RUnlock()
	if debouncer != nil {
		debouncer.Add(relPath, changeType)
	}
}

// handleDebouncedEvent is called after debounce window expires.
func (w *Watcher) handleDebouncedEvent(path string, changeType events.FileChangeType) {
	if changeType == events.FileChangeCreated {
		dir := filepath.Dir(path)
		w.pendingRenamesMu.Lock()
		pending, hasPending := w.pendingRenames[dir]
		if hasPending {
			delete(w.pendingRenames, dir)
		}
		w.pendingRenamesMu.Unlock()

		if hasPending && time.Since(pending.timestamp) < renameWindow {
			w.publisher.Publish(events.NewFileRenamedEvent(pending.oldPath, path))
			w.requestRescan()

			log.Debug().
				Str("old_path", pending.oldPath).
				Str("new_path", path).
				Msg("file renamed")
			return
		}
	}

	w.publisher.Publish(events.NewFileChangedEvent(path, changeType))
	if changeType.Structural() {
		w.requestRescan()
	}

	log.Debug().
		Str("path", path).
		Str("change", string(changeType)).
		Msg("file changed")
}

// relPath converts an absolute event path to a slash-separated path relative
// to the root.
func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.rootPath, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) shouldIgnore(relPath string) bool {
	return w.ignore != nil && w.ignore.IsIgnored(relPath)
}

var _ ports.FileWatcher = (*Watcher)(nil)
