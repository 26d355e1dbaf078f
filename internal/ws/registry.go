package ws

import "sync"

// Registry maps a user identity to its current live connection. A later
// Register for the same identity supersedes the mapping (last-write-wins),
// which is what makes multi-tab reconnection route to the fresh socket.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]sink
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]sink)}
}

func (r *Registry) Register(userID string, c sink) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	r.conns[userID] = c
	r.mu.Unlock()
}

func (r *Registry) Lookup(userID string) (sink, bool) {
	r.mu.RLock()
	c, ok := r.conns[userID]
	r.mu.RUnlock()
	return c, ok
}

// Remove drops the identity's entry only while it still points at the given
// connection. A newer connection that claimed the identity keeps its entry.
func (r *Registry) Remove(userID string, c sink) {
	r.mu.Lock()
	if cur, ok := r.conns[userID]; ok && cur == c {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
}

// RemoveConn scans out every entry held by the given connection. Disconnect
// events carry only the connection, so the identity has to be found by
// reverse lookup.
func (r *Registry) RemoveConn(c sink) {
	r.mu.Lock()
	for userID, cur := range r.conns {
		if cur == c {
			delete(r.conns, userID)
		}
	}
	r.mu.Unlock()
}
