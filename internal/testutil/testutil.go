// Package testutil provides shared test utilities and mocks for dirfilter tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/domain/ports"
	"github.com/brianly1003/dirfilter/internal/tree"
)

// MockSubscriber implements ports.Subscriber for testing.
type MockSubscriber struct {
	id      string
	events  []events.Event
	mu      sync.Mutex
	closed  bool
	sendErr error
	done    chan struct{}
}

// NewMockSubscriber creates a new mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:     id,
		events: make([]events.Event, 0),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Send records the event and returns any configured error.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.events = append(m.events, e)
	return nil
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventCount returns the number of received events.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// IsClosed returns whether the subscriber was closed.
func (m *MockSubscriber) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetSendError configures an error to return on Send.
func (m *MockSubscriber) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Ensure MockSubscriber implements ports.Subscriber.
var _ ports.Subscriber = (*MockSubscriber)(nil)

// MockEventHub implements ports.EventHub for testing. It records published
// events instead of delivering them.
type MockEventHub struct {
	events      []events.Event
	subscribers []ports.Subscriber
	mu          sync.Mutex
	started     bool
	stopped     bool
}

// NewMockEventHub creates a new mock event hub.
func NewMockEventHub() *MockEventHub {
	return &MockEventHub{
		events:      make([]events.Event, 0),
		subscribers: make([]ports.Subscriber, 0),
	}
}

// Start marks the hub as started.
func (m *MockEventHub) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

// Stop marks the hub as stopped.
func (m *MockEventHub) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// Publish records the event.
func (m *MockEventHub) Publish(e events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Subscribe records the subscriber.
func (m *MockEventHub) Subscribe(sub ports.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, sub)
}

// Unsubscribe removes a subscriber by ID.
func (m *MockEventHub) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subscribers {
		if sub.ID() == id {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of subscribers.
func (m *MockEventHub) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// DroppedEvents always returns 0; the mock never drops.
func (m *MockEventHub) DroppedEvents() int64 {
	return 0
}

// PublishedEvents returns all published events.
func (m *MockEventHub) PublishedEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventsOfType returns the published events of the given type, in order.
func (m *MockEventHub) EventsOfType(eventType events.EventType) []*events.BaseEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*events.BaseEvent
	for _, e := range m.events {
		if e.Type() != eventType {
			continue
		}
		if base, ok := e.(*events.BaseEvent); ok {
			result = append(result, base)
		}
	}
	return result
}

// Ensure MockEventHub implements ports.EventHub.
var _ ports.EventHub = (*MockEventHub)(nil)

// BuildTree builds an immutable tree rooted at "." from slash-separated file
// paths. Intermediate directories are created as needed and every list is
// sorted by name, as the scanner would produce it.
func BuildTree(paths ...string) *tree.Directory {
	root := &tree.Directory{Path: "."}
	dirs := map[string]*tree.Directory{".": root}

	var ensure func(path string) *tree.Directory
	ensure = func(path string) *tree.Directory {
		if d, ok := dirs[path]; ok {
			return d
		}
		parent := ensure(parentOf(path))
		d := &tree.Directory{Path: path}
		parent.Dirs = append(parent.Dirs, d)
		dirs[path] = d
		return d
	}

	for _, p := range paths {
		dir := ensure(parentOf(p))
		dir.Files = append(dir.Files, tree.File{Path: p})
	}

	for _, d := range dirs {
		sort.Slice(d.Files, func(i, j int) bool { return d.Files[i].Path < d.Files[j].Path })
		sort.Slice(d.Dirs, func(i, j int) bool { return d.Dirs[i].Path < d.Dirs[j].Path })
	}
	return root
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "."
	}
	return path[:i]
}

// WriteFiles creates empty files (and their parent directories) below root.
func WriteFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
		if err := os.WriteFile(full, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// Eventually polls cond until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// FilePaths returns the paths of files, in order.
func FilePaths(files []tree.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
