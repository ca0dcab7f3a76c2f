package mockagent

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

const sendBuffer = 64

type client struct {
	conn  *websocket.Conn
	s     *Server
	token string
	send  chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, s *Server, token string) *client {
	c := &client{
		conn:  conn,
		s:     s,
		token: token,
		send:  make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

// writePump drains the send queue. A write error drops the client.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.s.removeClient(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// enqueue queues v without blocking. It reports false when the client could
// not keep up.
func (c *client) enqueue(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.s.logger.Error("marshal frame", "error", err)
		return true
	}
	return c.enqueueRaw(data)
}

func (c *client) enqueueRaw(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
