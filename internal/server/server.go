// Package server exposes the continuous filter over HTTP and WebSocket.
//
// REST endpoints read the latest published snapshot and push patterns into
// the filter's broker. WebSocket clients are hub subscribers: every
// matches_updated event is streamed to them as a JSON text frame, and they
// may send set_pattern, get_matches and get_status commands.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/domain/ports"
	"github.com/brianly1003/dirfilter/internal/filter"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Application-level heartbeat interval.
// Sent as a JSON event (not WebSocket ping) for client-side monitoring.
const heartbeatInterval = 30 * time.Second

const shutdownTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool, any origin may connect
	},
}

// FilterService is the part of the continuous filter the server drives.
type FilterService interface {
	SetPattern(raw string) error
	Latest() (filter.Snapshot, bool)
	IsProcessing() bool
}

// Server is the HTTP/WebSocket server.
type Server struct {
	addr       string
	filter     FilterService
	hub        ports.EventHub
	logger     *slog.Logger
	maxResults int
	startTime  time.Time

	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener

	mu      sync.RWMutex
	clients map[string]*Client

	heartbeatSeq  atomic.Int64
	heartbeatDone chan struct{}
	stopOnce      sync.Once
}

// New creates a server for f. maxResults is the default number of paths
// returned by /api/matches and get_matches; zero returns all of them.
func New(host string, port int, f FilterService, hub ports.EventHub, logger *slog.Logger, maxResults int) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:          fmt.Sprintf("%s:%d", host, port),
		filter:        f,
		hub:           hub,
		logger:        logger,
		maxResults:    maxResults,
		startTime:     time.Now(),
		clients:       make(map[string]*Client),
		heartbeatDone: make(chan struct{}),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/matches", s.handleMatches).Methods("GET")
	api.HandleFunc("/pattern", s.handleSetPattern).Methods("POST")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	router.HandleFunc("/ws", s.handleWebSocket)
	s.router = router

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.router)
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// No ReadTimeout/WriteTimeout: they would cut long-lived WebSocket
		// connections. The pumps set their own deadlines.
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	go s.heartbeatLoop()

	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes all clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping HTTP server")

		close(s.heartbeatDone)

		s.mu.Lock()
		for _, client := range s.clients {
			client.Close()
		}
		clear(s.clients)
		s.mu.Unlock()

		if s.httpServer == nil {
			return
		}
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
		}
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// handleWebSocket upgrades the connection and subscribes the client to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewClient(conn, s.handleCommand, func(id string) {
		if s.hub != nil {
			s.hub.Unsubscribe(id)
		}
		s.removeClient(id)
	})

	s.mu.Lock()
	s.clients[client.ID()] = client
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Subscribe(client)
	}

	s.logger.Info("WebSocket client connected",
		"client_id", client.ID(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	client.Start()

	// New clients get the current matches without waiting for the next edit.
	if snap, ok := s.filter.Latest(); ok {
		_ = client.Send(s.matchesEvent(snap, s.maxResults, ""))
	}
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
	s.logger.Info("WebSocket client disconnected", "client_id", id)
}

// status builds the current status payload.
func (s *Server) status() events.StatusPayload {
	st := events.StatusPayload{
		Processing:    s.filter.IsProcessing(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if s.hub != nil {
		st.Subscribers = s.hub.SubscriberCount()
		st.DroppedEvents = s.hub.DroppedEvents()
	}
	if snap, ok := s.filter.Latest(); ok {
		st.Pattern = snap.Pattern()
		st.MatchCount = snap.Len()
		st.TotalFiles = snap.TotalFiles()
	}
	return st
}

// matchesEvent renders snap as a matches_updated event answering requestID.
func (s *Server) matchesEvent(snap filter.Snapshot, limit int, requestID string) *events.BaseEvent {
	event := events.NewMatchesUpdatedEvent(
		events.UpdateReasonRequest,
		snap.Pattern(),
		snap.Paths(limit),
		snap.Len(),
		snap.TotalFiles(),
	)
	event.RequestID = requestID
	return event
}

// heartbeatLoop sends periodic heartbeat events to every connected client.
func (s *Server) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.heartbeatDone:
			return
		case <-ticker.C:
			s.broadcastHeartbeat()
		}
	}
}

func (s *Server) broadcastHeartbeat() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	seq := s.heartbeatSeq.Add(1)
	heartbeat := events.NewHeartbeatEvent(seq, s.filter.IsProcessing(), time.Since(s.startTime))
	for _, client := range s.clients {
		_ = client.Send(heartbeat)
	}
	s.logger.Debug("Heartbeat sent", "seq", seq, "clients", len(s.clients))
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
