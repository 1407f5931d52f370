package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"StockSentinel/internal/usecase"
	xlogger "StockSentinel/pkg/logger"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	log, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	hub := NewHub(log)
	e := echo.New()
	e.GET("/ws", hub.Serve)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubBroadcast(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)

	event := &usecase.CycleEvent{Date: "2025-06-10", Mode: usecase.ModeClose, MarketBreadth: "Up: 1, Down: 2, Flat: 3"}
	// The subscriber registers asynchronously after the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		hub.Broadcast(event)
		time.Sleep(10 * time.Millisecond)
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n > 0 {
			break
		}
	}
	hub.Broadcast(event)

	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got usecase.CycleEvent
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Mode != usecase.ModeClose || got.Date != "2025-06-10" {
		t.Fatalf("event = %+v", got)
	}
}

// Overlapping cycles broadcast from different goroutines; the hub must
// serialize writes per connection.
func TestHubBroadcastConcurrent(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Drain frames so the server side never blocks on a full buffer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	event := &usecase.CycleEvent{Date: "2025-06-10", Mode: usecase.ModeClose}
	panics := make(chan interface{}, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics <- r
				}
			}()
			for j := 0; j < 50; j++ {
				hub.Broadcast(event)
			}
		}()
	}
	wg.Wait()
	close(panics)
	if r, ok := <-panics; ok {
		t.Fatalf("broadcast panicked: %v", r)
	}

	_ = conn.Close()
	<-done
}

func TestHubDropsClosedSubscriber(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = conn.Close()

	// The read loop notices the close and unregisters.
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("subscriber was not dropped")
}
