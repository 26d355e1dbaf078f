package ws

import (
	"sync"
)

// Hub keeps subscriber sets per room code.
type Hub struct {
	rooms sync.Map // roomCode -> *room
}

func NewHub() *Hub { return &Hub{} }

// Broadcast is called by the Redis subscriber.
func (h *Hub) Broadcast(roomCode string, msg []byte) {
	if v, ok := h.rooms.Load(roomCode); ok {
		v.(*room).broadcast(nil, msg)
	}
}

// BroadcastExcept fans out to every subscriber but the given connection.
func (h *Hub) BroadcastExcept(roomCode string, except sink, msg []byte) {
	if v, ok := h.rooms.Load(roomCode); ok {
		v.(*room).broadcast(except, msg)
	}
}

func (h *Hub) Join(roomCode string, c sink) {
	for {
		v, _ := h.rooms.LoadOrStore(roomCode, newRoom())
		if v.(*room).add(c) {
			return
		}
		// Lost the race with the last leaver: the entry is dead but not yet
		// evicted. Clear it and retry against a fresh room.
		h.rooms.CompareAndDelete(roomCode, v)
	}
}

func (h *Hub) Leave(roomCode string, c sink) {
	if v, ok := h.rooms.Load(roomCode); ok {
		if v.(*room).remove(c) == 0 {
			// Only evict the instance we drained; a concurrent joiner may
			// already have replaced it.
			h.rooms.CompareAndDelete(roomCode, v)
		}
	}
}
