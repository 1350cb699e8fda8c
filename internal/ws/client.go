package ws

import (
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 8192
)

// Client is one authenticated control connection, bound to a match
// seat by its redeemed ticket.
type Client struct {
	Identity string
	MatchID  string
	Role     domain.Role

	Conn *websocket.Conn
	Send chan []byte
	Done chan struct{}

	closeOnce sync.Once
	hub       *Hub
}

func NewClient(identity, matchID string, role domain.Role, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Identity: identity,
		MatchID:  matchID,
		Role:     role,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		Done:     make(chan struct{}),
		hub:      hub,
	}
}

// Run starts both pumps and blocks until the connection drops.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
	<-c.Done
}

// Close tears the connection down. Send is deliberately never closed:
// the machine notifier, relay flush and peer read pumps may all be
// inside enqueue concurrently, and a send on a closed channel panics.
// Closing the conn unblocks the read pump, which runs the cleanup.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.Conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.onDisconnect(c)
		_ = c.Conn.Close()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(readLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws: read error", "identity", c.Identity, "error", err)
			}
			return
		}
		c.hub.handleMessage(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws: write error", "identity", c.Identity, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue drops the frame rather than blocking the caller when the
// client's send buffer is full.
func (c *Client) enqueue(frame []byte) {
	if frame == nil {
		return
	}
	select {
	case c.Send <- frame:
	default:
		logger.Warn("ws: send buffer full, dropping frame", "identity", c.Identity)
	}
}
