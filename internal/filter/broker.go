package filter

import (
	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/sync"
)

// Broker carries raw pattern strings from producers (the CLI, the HTTP API)
// to the filter's pattern listener.
//
// Values queued while nobody receives are coalesced: Recv returns only the
// most recent one and discards the rest, so a burst of keystrokes produces one
// scan for the final pattern.
//
// A value returned by Recv stays in flight until the receiver calls Release,
// so Busy never reports idle between dequeuing a pattern and finishing its
// scan.
type Broker struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     *sync.Cond
	queue    []string
	closed   bool
	waiting  int
	inFlight int
}

// NewBroker creates an open broker.
func NewBroker() *Broker {
	b := &Broker{}
	b.cond = sync.NewCond(&b.mu)
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Send queues pattern and wakes one blocked receiver. It never blocks.
// Values sent after Close are dropped.
func (b *Broker) Send(pattern string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.queue = append(b.queue, pattern)
	b.cond.Signal()
}

// Recv returns the most recently sent pattern, discarding older queued ones.
// It blocks while the queue is empty and returns domain.ErrBrokerClosed once
// the broker is closed. Every value returned must be handed back with Release.
func (b *Broker) Recv() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.closed {
			return "", domain.ErrBrokerClosed
		}
		if n := len(b.queue); n > 0 {
			latest := b.queue[n-1]
			b.queue = b.queue[:0]
			b.inFlight++
			return latest, nil
		}
		b.waiting++
		b.cond.Wait()
		b.waiting--
	}
}

// Close wakes every blocked receiver. It is safe to call more than once.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.queue = nil
	b.cond.Broadcast()
	b.idle.Broadcast()
}

// Release marks one value returned by Recv as fully processed.
func (b *Broker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inFlight > 0 {
		b.inFlight--
	}
	if b.inFlight == 0 && len(b.queue) == 0 {
		b.idle.Broadcast()
	}
}

// Busy reports whether a value is queued or has been received but not
// released yet.
func (b *Broker) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) > 0 || b.inFlight > 0
}

// Drain blocks until every value sent so far has been received and released,
// or the broker is closed.
func (b *Broker) Drain() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.closed && (len(b.queue) > 0 || b.inFlight > 0) {
		b.idle.Wait()
	}
}

// HasPending reports whether a sent value has not been received yet.
func (b *Broker) HasPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) > 0
}

// IsClosed reports whether Close has been called.
func (b *Broker) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Waiting returns the number of receivers currently blocked in Recv.
func (b *Broker) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting
}
