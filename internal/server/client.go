package server

import (
	"sync"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/domain/ports"
	"github.com/brianly1003/dirfilter/internal/hub"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Send buffer size per client.
	sendBufferSize = 256
)

// streamedEvents are the hub events forwarded to WebSocket clients.
var streamedEvents = map[events.EventType]bool{
	events.EventTypeMatchesUpdated: true,
	events.EventTypePatternChanged: true,
	events.EventTypeTreeChanged:    true,
	events.EventTypeFilterStopped:  true,
	events.EventTypeHeartbeat:      true,
	events.EventTypeStatus:         true,
	events.EventTypeError:          true,
}

// CommandHandler handles one message read from a client.
type CommandHandler func(client *Client, message []byte)

// Client is a WebSocket connection subscribed to the event hub.
//
// Each client runs a read pump feeding the command handler and a write pump
// draining two queues: an ordered buffer for most events and a one-slot lane
// holding the newest broadcast snapshot. A client that reads slowly therefore
// skips intermediate snapshots instead of losing the latest one.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	snapshot       chan []byte
	done           chan struct{}
	commandHandler CommandHandler
	onClose        func(id string)

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client.
func NewClient(conn *websocket.Conn, commandHandler CommandHandler, onClose func(id string)) *Client {
	return &Client{
		id:             hub.NewSubscriberID("ws"),
		conn:           conn,
		send:           make(chan []byte, sendBufferSize),
		snapshot:       make(chan []byte, 1),
		done:           make(chan struct{}),
		commandHandler: commandHandler,
		onClose:        onClose,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Start starts the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues event for the client. Events the client does not stream are
// ignored. Broadcast snapshots replace any snapshot not yet written; other
// events are dropped when the buffer is full.
func (c *Client) Send(event events.Event) error {
	if !streamedEvents[event.Type()] {
		return nil
	}

	data, err := event.ToJSON()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrSubscriberClosed
	}

	if isBroadcastSnapshot(event) {
		select {
		case <-c.snapshot:
		default:
		}
		c.snapshot <- data
		return nil
	}

	select {
	case c.send <- data:
	default:
		log.Warn().Str("client_id", c.id).Str("event_type", string(event.Type())).Msg("client send channel full, dropping message")
	}
	return nil
}

// isBroadcastSnapshot reports whether event is a matches_updated event that
// does not answer a command.
func isBroadcastSnapshot(event events.Event) bool {
	base, ok := event.(*events.BaseEvent)
	return ok && base.EventType == events.EventTypeMatchesUpdated && base.RequestID == ""
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump pumps messages from the WebSocket connection to the command handler.
func (c *Client) readPump() {
	defer func() {
		_ = c.Close()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c.id)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			return
		}

		if c.commandHandler != nil {
			c.commandHandler(c, message)
		}
	}
}

// writePump writes queued messages, one text frame each, and pings the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			if !c.write(message) {
				return
			}

		case message := <-c.snapshot:
			if !c.write(message) {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("ping error")
				return
			}
		}
	}
}

func (c *Client) write(message []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		log.Debug().Err(err).Str("client_id", c.id).Msg("write error")
		return false
	}
	return true
}

var _ ports.Subscriber = (*Client)(nil)
