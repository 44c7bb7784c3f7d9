package watcher

import (
	"sync"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain/events"
)

// pendingChange is a change waiting for its path to go quiet.
type pendingChange struct {
	change events.FileChangeType
	timer  *time.Timer
}

// Debouncer coalesces rapid file system events per path. The callback runs
// once a path has seen no new event for the whole window, with the merged
// change type.
type Debouncer struct {
	window   time.Duration
	callback func(path string, changeType events.FileChangeType)

	mu      sync.Mutex
	pending map[string]*pendingChange
	stopped bool
}

// NewDebouncer creates a new debouncer with the given window and callback.
func NewDebouncer(window time.Duration, callback func(path string, changeType events.FileChangeType)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*pendingChange),
	}
}

// Add queues a change for path, restarting its window.
func (d *Debouncer) Add(path string, changeType events.FileChangeType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[path]; ok {
		p.change = mergeChangeTypes(p.change, changeType)
		p.timer.Reset(d.window)
		return
	}

	d.pending[path] = &pendingChange{
		change: changeType,
		timer:  time.AfterFunc(d.window, func() { d.fire(path) }),
	}
}

// Pending returns the number of paths waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	if d.callback != nil {
		d.callback(path, p.change)
	}
}

// Stop cancels every pending change. Later Adds are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, p := range d.pending {
		p.timer.Stop()
	}
	clear(d.pending)
}

// mergeChangeTypes combines two change types for the same path.
//
// A deletion always wins and a creation absorbs later modifications.
// Otherwise the newer change is kept.
func mergeChangeTypes(existing, next events.FileChangeType) events.FileChangeType {
	if next == events.FileChangeDeleted {
		return events.FileChangeDeleted
	}
	if existing == events.FileChangeCreated {
		return events.FileChangeCreated
	}
	return next
}
