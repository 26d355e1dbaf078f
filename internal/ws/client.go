package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sink is the write side of one live connection, as seen by the registry,
// the hub and the fan-out path.
type sink interface {
	write(mt int, data []byte) error
	writeJSON(v any) error
	close()
}

type clientConn struct {
	rawConn *websocket.Conn
	mu      sync.Mutex
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data) // Text/Binary only
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteJSON(v)
}

func (c *clientConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.Close()
}
