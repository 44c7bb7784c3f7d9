// Package ports declares the interfaces the filter pipeline depends on.
package ports

import (
	"github.com/brianly1003/dirfilter/internal/domain/events"
)

// Subscriber receives events from an EventHub.
type Subscriber interface {
	ID() string

	// Send delivers event without blocking. An error makes the hub drop the
	// subscriber.
	Send(event events.Event) error

	// Close is idempotent.
	Close() error

	// Done is closed once the subscriber is closed.
	Done() <-chan struct{}
}

// EventPublisher is what the filter and the watcher need to emit events.
type EventPublisher interface {
	Publish(event events.Event)
}

// EventHub distributes published events to its subscribers.
type EventHub interface {
	EventPublisher

	Start() error
	Stop() error

	// Subscribe may be called before Start.
	Subscribe(sub Subscriber)
	Unsubscribe(id string)

	SubscriberCount() int

	// DroppedEvents counts events discarded because the queue was full.
	DroppedEvents() int64
}
