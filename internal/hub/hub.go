// Package hub fans filter and file events out to the CLI printer, the
// WebSocket clients and the debug log.
package hub

import (
	"sync/atomic"

	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/domain/ports"
	"github.com/brianly1003/dirfilter/internal/sync"
	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is the publish queue length used by New.
const DefaultBufferSize = 256

// Hub delivers published events to every subscriber from a single goroutine,
// so each subscriber sees events in publish order.
//
// Subscribers may be added before Start; they receive everything published
// from then on. Stop delivers what is still queued and then closes every
// subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]ports.Subscriber
	running     bool
	done        chan struct{}
	stopped     chan struct{}

	queue chan events.Event

	delivered atomic.Int64
	dropped   atomic.Int64
}

// Stats is a point-in-time view of the hub counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
}

// New creates a Hub with the default queue length.
func New() *Hub {
	return NewWithBuffer(DefaultBufferSize)
}

// NewWithBuffer creates a Hub whose publish queue holds size events.
func NewWithBuffer(size int) *Hub {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		queue:       make(chan events.Event, size),
	}
}

// Start launches the delivery loop. Starting a running hub is a no-op.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}
	h.running = true
	h.done = make(chan struct{})
	h.stopped = make(chan struct{})

	go h.run(h.done, h.stopped)
	log.Debug().Int("subscribers", len(h.subscribers)).Msg("event hub started")
	return nil
}

// Stop flushes the queue, waits for the delivery loop to exit and closes
// every subscriber. Stopping a stopped hub is a no-op.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	done, stopped := h.done, h.stopped
	h.mu.Unlock()

	close(done)
	<-stopped

	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[string]ports.Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}

	stats := h.Stats()
	log.Debug().
		Int64("delivered", stats.Delivered).
		Int64("dropped", stats.Dropped).
		Msg("event hub stopped")
	return nil
}

func (h *Hub) run(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case event := <-h.queue:
			h.dispatch(event)
		case <-done:
			for {
				select {
				case event := <-h.queue:
					h.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

// dispatch sends event to every subscriber. Subscribers whose Send fails are
// removed and closed before the next event is delivered.
func (h *Hub) dispatch(event events.Event) {
	h.mu.RLock()
	subs := make([]ports.Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	var failed []ports.Subscriber
	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			log.Warn().
				Str("subscriber_id", sub.ID()).
				Str("event_type", string(event.Type())).
				Err(err).
				Msg("dropping subscriber after failed send")
			failed = append(failed, sub)
		}
	}
	h.delivered.Add(1)

	for _, sub := range failed {
		h.remove(sub.ID(), sub)
	}
}

// remove deletes id if it still maps to sub and closes sub.
func (h *Hub) remove(id string, sub ports.Subscriber) {
	h.mu.Lock()
	if cur, ok := h.subscribers[id]; ok && cur == sub {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
	_ = sub.Close()
}

// Publish queues event for delivery. It never blocks: when the queue is full
// the event is dropped and counted.
func (h *Hub) Publish(event events.Event) {
	select {
	case h.queue <- event:
	default:
		n := h.dropped.Add(1)
		log.Warn().
			Str("event_type", string(event.Type())).
			Int64("dropped_total", n).
			Msg("event dropped: hub queue full")
	}
}

// Subscribe adds sub. A subscriber with the same ID is replaced and closed.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	h.mu.Lock()
	old, replaced := h.subscribers[sub.ID()]
	h.subscribers[sub.ID()] = sub
	h.mu.Unlock()

	if replaced && old != sub {
		_ = old.Close()
	}
	log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")
}

// Unsubscribe removes and closes the subscriber with the given ID.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()

	if ok {
		_ = sub.Close()
		log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// DroppedEvents returns how many events Publish discarded.
func (h *Hub) DroppedEvents() int64 {
	return h.dropped.Load()
}

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.SubscriberCount(),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// IsRunning reports whether the delivery loop is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

var _ ports.EventHub = (*Hub)(nil)
