package server

import (
	"encoding/json"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/hub"
	"github.com/brianly1003/dirfilter/internal/testutil"
	"github.com/gorilla/websocket"
)

// wireEvent is an event as read off the socket.
type wireEvent struct {
	Event     events.EventType `json:"event"`
	RequestID string           `json:"request_id"`
	Payload   json.RawMessage  `json:"payload"`
}

type wsFixture struct {
	server *Server
	hub    *hub.Hub
	filter *fakeFilter
	conn   *websocket.Conn
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	eventHub := hub.New()
	if err := eventHub.Start(); err != nil {
		t.Fatalf("hub Start() error = %v", err)
	}
	t.Cleanup(func() { _ = eventHub.Stop() })

	f := newFakeFilter(t, "x", "a/x.txt", "a/y.log", "b/x.log")
	s := New("127.0.0.1", 0, f, eventHub, nil, 0)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	testutil.Eventually(t, 2*time.Second, func() bool {
		return eventHub.SubscriberCount() == 1
	}, "client subscribed to hub")

	return &wsFixture{server: s, hub: eventHub, filter: f, conn: conn}
}

func (fx *wsFixture) send(t *testing.T, msg string) {
	t.Helper()
	if err := fx.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

// readUntil reads frames until one of type want arrives.
func (fx *wsFixture) readUntil(t *testing.T, want events.EventType) wireEvent {
	t.Helper()
	_ = fx.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := fx.conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var ev wireEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad frame %s: %v", data, err)
		}
		if ev.Event == want {
			return ev
		}
	}
}

func TestWebSocket_InitialMatches(t *testing.T) {
	fx := newWSFixture(t)

	ev := fx.readUntil(t, events.EventTypeMatchesUpdated)
	var payload events.MatchesUpdatedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Reason != events.UpdateReasonRequest {
		t.Errorf("Reason = %s, want request", payload.Reason)
	}
	if !slices.Equal(payload.Paths, []string{"a/x.txt", "b/x.log"}) {
		t.Errorf("Paths = %v", payload.Paths)
	}
	if fx.server.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", fx.server.ClientCount())
	}
}

func TestWebSocket_StreamsHubEvents(t *testing.T) {
	fx := newWSFixture(t)

	fx.hub.Publish(events.NewFileChangedEvent("a/z.txt", events.FileChangeCreated))
	fx.hub.Publish(events.NewMatchesUpdatedEvent(events.UpdateReasonTree, "x", []string{"a/x.txt"}, 1, 3))

	for {
		ev := fx.readUntil(t, events.EventTypeMatchesUpdated)
		var payload events.MatchesUpdatedPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload.Reason == events.UpdateReasonTree {
			if payload.MatchCount != 1 {
				t.Errorf("MatchCount = %d, want 1", payload.MatchCount)
			}
			return
		}
	}
}

func TestWebSocket_SetPattern(t *testing.T) {
	fx := newWSFixture(t)

	fx.send(t, `{"command":"set_pattern","request_id":"r1","payload":{"pattern":"log"}}`)

	testutil.Eventually(t, 2*time.Second, func() bool {
		return slices.Equal(fx.filter.Patterns(), []string{"log"})
	}, "pattern forwarded to filter")
}

func TestWebSocket_SetPatternStopped(t *testing.T) {
	fx := newWSFixture(t)
	fx.filter.mu.Lock()
	fx.filter.stopped = true
	fx.filter.mu.Unlock()

	fx.send(t, `{"command":"set_pattern","request_id":"r2","payload":{"pattern":"log"}}`)

	ev := fx.readUntil(t, events.EventTypeError)
	var payload events.ErrorPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Code != domain.ErrCodeFilterStopped || ev.RequestID != "r2" {
		t.Errorf("error = %+v (request %s), want FILTER_STOPPED for r2", payload, ev.RequestID)
	}
}

func TestWebSocket_GetMatches(t *testing.T) {
	fx := newWSFixture(t)

	fx.send(t, `{"command":"get_matches","request_id":"m1","payload":{"limit":1}}`)

	for {
		ev := fx.readUntil(t, events.EventTypeMatchesUpdated)
		if ev.RequestID != "m1" {
			continue
		}
		var payload events.MatchesUpdatedPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if len(payload.Paths) != 1 || payload.MatchCount != 2 || !payload.Truncated {
			t.Errorf("payload = %+v, want 1 of 2 paths, truncated", payload)
		}
		return
	}
}

func TestWebSocket_GetStatus(t *testing.T) {
	fx := newWSFixture(t)

	fx.send(t, `{"command":"get_status","request_id":"s1"}`)

	ev := fx.readUntil(t, events.EventTypeStatus)
	if ev.RequestID != "s1" {
		t.Errorf("RequestID = %s, want s1", ev.RequestID)
	}
	var status events.StatusPayload
	if err := json.Unmarshal(ev.Payload, &status); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if status.Pattern != "x" || status.MatchCount != 2 || status.Subscribers != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestWebSocket_BadCommands(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"not json", `{oops`},
		{"unknown command", `{"command":"explode","request_id":"u1"}`},
		{"set_pattern without payload", `{"command":"set_pattern","request_id":"u2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newWSFixture(t)
			fx.send(t, tt.msg)

			ev := fx.readUntil(t, events.EventTypeError)
			var payload events.ErrorPayload
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if payload.Code != domain.ErrCodeInvalidPayload {
				t.Errorf("Code = %s, want %s", payload.Code, domain.ErrCodeInvalidPayload)
			}
		})
	}
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	fx := newWSFixture(t)

	_ = fx.conn.Close()

	testutil.Eventually(t, 2*time.Second, func() bool {
		return fx.hub.SubscriberCount() == 0 && fx.server.ClientCount() == 0
	}, "client removed after disconnect")
}

func TestClient_SendAfterClose(t *testing.T) {
	c := NewClient(nil, nil, nil)
	if !strings.HasPrefix(c.ID(), "ws-") {
		t.Errorf("ID() = %s, want ws- prefix", c.ID())
	}

	_ = c.Close()
	_ = c.Close()

	err := c.Send(events.NewPatternChangedEvent("x"))
	if err != domain.ErrSubscriberClosed {
		t.Errorf("Send() after Close error = %v, want ErrSubscriberClosed", err)
	}
	// Events the client does not stream are ignored even when closed.
	if err := c.Send(events.NewFileChangedEvent("a", events.FileChangeCreated)); err != nil {
		t.Errorf("Send(file_changed) error = %v, want nil", err)
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done() should be closed")
	}
}

func TestClient_BroadcastSnapshotsCoalesce(t *testing.T) {
	c := NewClient(nil, nil, nil)

	for i := range 3 {
		_ = c.Send(events.NewMatchesUpdatedEvent(events.UpdateReasonTree, "x", nil, i, 10))
	}
	reply := events.NewMatchesUpdatedEvent(events.UpdateReasonRequest, "x", nil, 7, 10)
	reply.RequestID = "r1"
	_ = c.Send(reply)

	if len(c.snapshot) != 1 {
		t.Fatalf("snapshot lane holds %d messages, want 1", len(c.snapshot))
	}
	var latest events.BaseEvent
	var payload events.MatchesUpdatedPayload
	latest.Payload = &payload
	if err := json.Unmarshal(<-c.snapshot, &latest); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.MatchCount != 2 {
		t.Errorf("latest snapshot MatchCount = %d, want 2", payload.MatchCount)
	}

	if len(c.send) != 1 {
		t.Errorf("ordered queue holds %d messages, want the request reply only", len(c.send))
	}
}
