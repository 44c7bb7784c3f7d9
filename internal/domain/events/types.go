// Package events defines the events published on the hub and streamed to
// WebSocket clients.
package events

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// EventType names an event on the wire.
type EventType string

const (
	EventTypeFileChanged EventType = "file_changed"
	EventTypeTreeChanged EventType = "tree_changed"

	EventTypePatternChanged EventType = "pattern_changed"
	EventTypeMatchesUpdated EventType = "matches_updated"
	EventTypeFilterStopped  EventType = "filter_stopped"

	// Replies to WebSocket commands.
	EventTypeStatus EventType = "status"
	EventTypeError  EventType = "error"

	EventTypeHeartbeat EventType = "heartbeat"
)

// Event is anything the hub can deliver.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	ToJSON() ([]byte, error)
}

// sequence numbers every event created by this process.
var sequence atomic.Uint64

// BaseEvent is the JSON envelope sent to clients. Seq increases by one per
// created event, so a client that sees a gap knows the hub dropped events.
type BaseEvent struct {
	EventType EventType `json:"event"`
	Seq       uint64    `json:"seq"`
	EventTime time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Payload   any       `json:"payload"`
}

func (e *BaseEvent) Type() EventType {
	return e.EventType
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent creates an event stamped with the current UTC time and the next
// sequence number.
func NewEvent(eventType EventType, payload any) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		Seq:       sequence.Add(1),
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithRequestID creates an event answering the command with requestID.
func NewEventWithRequestID(eventType EventType, payload any, requestID string) *BaseEvent {
	e := NewEvent(eventType, payload)
	e.RequestID = requestID
	return e
}

// ErrorPayload answers a command that could not be handled. Code is one of
// the domain.ErrCode constants.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(code, message, requestID string) *BaseEvent {
	return NewEventWithRequestID(EventTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	}, requestID)
}

// HeartbeatPayload is sent to WebSocket clients every heartbeat interval.
type HeartbeatPayload struct {
	Sequence      int64 `json:"sequence"`
	Processing    bool  `json:"processing"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// NewHeartbeatEvent creates heartbeat number seq.
func NewHeartbeatEvent(seq int64, processing bool, uptime time.Duration) *BaseEvent {
	return NewEvent(EventTypeHeartbeat, HeartbeatPayload{
		Sequence:      seq,
		Processing:    processing,
		UptimeSeconds: int64(uptime.Seconds()),
	})
}
