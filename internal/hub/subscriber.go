package hub

import (
	"sync/atomic"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/sync"
	"github.com/google/uuid"
)

// NewSubscriberID returns prefix followed by a random UUID.
func NewSubscriberID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// ChannelSubscriber buffers events in a channel for a consumer goroutine.
//
// A full buffer evicts its oldest event rather than failing the send, so a
// slow reader falls behind on intermediate snapshots but always ends up with
// the newest one and the final filter_stopped event.
type ChannelSubscriber struct {
	id    string
	types map[events.EventType]bool

	mu      sync.Mutex
	send    chan events.Event
	done    chan struct{}
	closed  bool
	evicted atomic.Int64
}

// NewChannelSubscriber creates a subscriber with room for bufferSize events.
// When types are given, events of other types are ignored.
func NewChannelSubscriber(id string, bufferSize int, types ...events.EventType) *ChannelSubscriber {
	if bufferSize < 1 {
		bufferSize = 1
	}
	s := &ChannelSubscriber{
		id:   id,
		send: make(chan events.Event, bufferSize),
		done: make(chan struct{}),
	}
	if len(types) > 0 {
		s.types = make(map[events.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	return s
}

func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Send queues event. It fails only once the subscriber is closed.
func (s *ChannelSubscriber) Send(event events.Event) error {
	if s.types != nil && !s.types[event.Type()] {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSubscriberClosed
	}

	for {
		select {
		case s.send <- event:
			return nil
		default:
		}
		select {
		case <-s.send:
			s.evicted.Add(1)
		default:
		}
	}
}

// Evicted returns how many queued events were discarded to make room.
func (s *ChannelSubscriber) Evicted() int64 {
	return s.evicted.Load()
}

// Close closes Done and the event channel. Queued events stay readable.
func (s *ChannelSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.send)
	return nil
}

func (s *ChannelSubscriber) Done() <-chan struct{} {
	return s.done
}

// Events is closed after Close once drained.
func (s *ChannelSubscriber) Events() <-chan events.Event {
	return s.send
}

// FuncSubscriber calls fn synchronously on the hub goroutine for every event.
// fn must not block.
type FuncSubscriber struct {
	id string
	fn func(event events.Event)

	closed atomic.Bool
	once   sync.Once
	done   chan struct{}
}

// NewFuncSubscriber creates a subscriber around fn. A nil fn ignores events.
func NewFuncSubscriber(id string, fn func(event events.Event)) *FuncSubscriber {
	return &FuncSubscriber{
		id:   id,
		fn:   fn,
		done: make(chan struct{}),
	}
}

func (s *FuncSubscriber) ID() string {
	return s.id
}

func (s *FuncSubscriber) Send(event events.Event) error {
	if s.closed.Load() {
		return domain.ErrSubscriberClosed
	}
	if s.fn != nil {
		s.fn(event)
	}
	return nil
}

func (s *FuncSubscriber) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
	return nil
}

func (s *FuncSubscriber) Done() <-chan struct{} {
	return s.done
}
