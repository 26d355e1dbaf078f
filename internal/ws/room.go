package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

type room struct {
	mu    sync.RWMutex
	dead  bool
	conns map[sink]struct{}
}

func newRoom() *room { return &room{conns: map[sink]struct{}{}} }

// add subscribes the connection. It reports false once the room has gone
// dead (its last member left and eviction is in flight), in which case the
// caller must retry against a fresh instance.
func (r *room) add(c sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

// remove unsubscribes the connection and reports how many remain. Removing
// the last member marks the room dead under the same lock, so no add can
// sneak in between the count reaching zero and the hub's eviction. The
// connection itself stays open; closing is the transport loop's job.
func (r *room) remove(c sink) int {
	r.mu.Lock()
	delete(r.conns, c)
	n := len(r.conns)
	if n == 0 {
		r.dead = true
	}
	r.mu.Unlock()
	return n
}

func (r *room) broadcast(except sink, msg []byte) {
	// Take a quick snapshot of the current connections
	r.mu.RLock()
	conns := make([]sink, 0, len(r.conns))
	for c := range r.conns {
		if c == except {
			continue
		}
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	// Do the I/O outside the lock
	for _, c := range conns {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			r.remove(c)
			c.close()
		}
	}
}
