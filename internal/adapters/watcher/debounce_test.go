package watcher

import (
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain/events"
)

type firedChange struct {
	path   string
	change events.FileChangeType
}

type recorder struct {
	mu    sync.Mutex
	fired []firedChange
}

func (r *recorder) record(path string, change events.FileChangeType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, firedChange{path, change})
}

func (r *recorder) snapshot() []firedChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]firedChange(nil), r.fired...)
}

func TestDebouncer_CoalescesPerPath(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(30*time.Millisecond, rec.record)
	defer d.Stop()

	d.Add("a.go", events.FileChangeCreated)
	d.Add("a.go", events.FileChangeModified)
	d.Add("a.go", events.FileChangeModified)
	d.Add("b.go", events.FileChangeModified)

	if d.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", d.Pending())
	}

	time.Sleep(100 * time.Millisecond)

	fired := rec.snapshot()
	if len(fired) != 2 {
		t.Fatalf("fired = %v, want 2 callbacks", fired)
	}
	for _, f := range fired {
		if f.path == "a.go" && f.change != events.FileChangeCreated {
			t.Errorf("a.go change = %s, want created", f.change)
		}
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}
}

func TestDebouncer_Stop(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(20*time.Millisecond, rec.record)

	d.Add("a.go", events.FileChangeCreated)
	d.Stop()
	d.Add("b.go", events.FileChangeCreated)

	time.Sleep(60 * time.Millisecond)

	if fired := rec.snapshot(); len(fired) != 0 {
		t.Errorf("fired = %v, want none after Stop", fired)
	}
}

func TestMergeChangeTypes(t *testing.T) {
	tests := []struct {
		existing events.FileChangeType
		next     events.FileChangeType
		want     events.FileChangeType
	}{
		{events.FileChangeCreated, events.FileChangeModified, events.FileChangeCreated},
		{events.FileChangeCreated, events.FileChangeDeleted, events.FileChangeDeleted},
		{events.FileChangeModified, events.FileChangeDeleted, events.FileChangeDeleted},
		{events.FileChangeDeleted, events.FileChangeCreated, events.FileChangeCreated},
		{events.FileChangeModified, events.FileChangeModified, events.FileChangeModified},
	}

	for _, tt := range tests {
		t.Run(string(tt.existing)+"+"+string(tt.next), func(t *testing.T) {
			if got := mergeChangeTypes(tt.existing, tt.next); got != tt.want {
				t.Errorf("mergeChangeTypes(%s, %s) = %s, want %s", tt.existing, tt.next, got, tt.want)
			}
		})
	}
}
