package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	xlogger "StockSentinel/pkg/logger"
)

const streamWriteTimeout = 5 * time.Second

// subscriber pairs a connection with its write lock. The websocket
// package allows at most one concurrent writer per connection, and
// overlapping cycles (a manual trigger racing the scheduled one)
// broadcast from different goroutines.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub fans cycle events out to connected websocket subscribers. It is
// the live counterpart of the Kafka publisher: dashboards subscribe to
// /ws and receive each cycle's event as a JSON frame.
type Hub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]*subscriber
	closed  bool
}

func NewHub(logger *xlogger.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*subscriber),
	}
}

// Serve upgrades the request and holds the connection until the client
// goes away. Inbound frames are drained and discarded, the stream is
// one-way.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return conn.Close()
	}
	h.clients[conn] = &subscriber{conn: conn}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("stream subscriber connected",
		xlogger.String("remote", conn.RemoteAddr().String()), xlogger.Int("subscribers", n))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(conn)
	return nil
}

// Broadcast sends v as one JSON frame to every subscriber. Safe for
// concurrent callers; connections that fail the write are dropped.
func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("stream payload marshal failed", xlogger.Error(err))
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients))
	for _, sub := range h.clients {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(payload); err != nil {
			h.logger.Debug("stream subscriber write failed, dropping",
				xlogger.String("remote", sub.conn.RemoteAddr().String()), xlogger.Error(err))
			h.drop(sub.conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Close tears down all subscriber connections during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients))
	for _, sub := range h.clients {
		subs = append(subs, sub)
	}
	h.clients = make(map[*websocket.Conn]*subscriber)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		// WriteControl is safe alongside in-flight writes.
		_ = sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(streamWriteTimeout))
		_ = sub.conn.Close()
	}
}
