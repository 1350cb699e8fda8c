package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"match_coordinator/internal/domain"

	"github.com/gorilla/websocket"
)

func newTestConn(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(srv.URL, "http", "ws", 1), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// Teardown must never race a frame onto a closed Send channel: the
// machine notifier, relay flush and peer read pumps can all be inside
// enqueue while the hub replaces or resets the session.
func TestCloseDoesNotBreakConcurrentEnqueue(t *testing.T) {
	c := NewClient("alice", "m1", domain.RoleP1, newTestConn(t), nil)
	go c.writePump()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.enqueue([]byte(`{"type":"TURN_START"}`))
			}
		}()
	}

	c.Close()
	c.Close() // idempotent
	wg.Wait()

	// stragglers after teardown are dropped, not a panic
	c.enqueue([]byte(`{"type":"TURN_RESULT"}`))
}
