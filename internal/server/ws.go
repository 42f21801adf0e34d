package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Srinivas26k/zoom-poll-service/internal/metrics"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 64
)

// Event is a message pushed to WebSocket subscribers. Type is one of
// "transcript", "note" or "poll".
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// subscriber is one connected client. All frame writes go through the send
// channel to a single writer goroutine; the websocket connection allows only
// one concurrent writer.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans recorder events out to connected WebSocket clients. Clients whose
// send buffer fills up are dropped.
type Hub struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]bool
	closed bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The service runs on localhost next to its UI, so any
			// origin is accepted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*subscriber]bool),
	}
}

// HandleWS upgrades the request and keeps the connection subscribed until
// the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[sub] = true
	count := len(h.subs)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordWSConnect()
	}
	h.logger.Info("WebSocket subscriber connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("subscribers", count))

	go h.writePump(sub)

	// Drain incoming frames so pings and close messages are handled; the
	// stream is push-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(sub)
	conn.Close()
	h.logger.Info("WebSocket subscriber disconnected", slog.String("remote", r.RemoteAddr))
}

// writePump is the subscriber's sole frame writer.
func (h *Hub) writePump(sub *subscriber) {
	for {
		select {
		case data := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("Dropping WebSocket subscriber on write error",
					slog.String("error", err.Error()))
				h.remove(sub)
				sub.conn.Close()
				return
			}
			if h.metrics != nil {
				h.metrics.RecordWSMessage()
			}
		case <-sub.done:
			return
		}
	}
}

// Broadcast pushes an event to every subscriber. It is safe to call from
// multiple goroutines.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("Dropping slow WebSocket subscriber")
			h.remove(sub)
			sub.conn.Close()
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*subscriber]bool)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(wsWriteTimeout))
		sub.stop()
		sub.conn.Close()
		if h.metrics != nil {
			h.metrics.RecordWSDisconnect()
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, present := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()

	sub.stop()
	if present && h.metrics != nil {
		h.metrics.RecordWSDisconnect()
	}
}
