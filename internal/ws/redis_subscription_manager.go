package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// subscriptionManager guarantees that we have **exactly one** Redis
// subscription per "board:<code>:events" channel ― no matter how many
// websocket clients join the same room.
type subscriptionManager struct {
	rdb      *redis.Client
	hub      *Hub
	registry *Registry
	mu       sync.Mutex
	subs     map[string]*subEntry // roomCode ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub, registry *Registry) *subscriptionManager {
	return &subscriptionManager{
		rdb:      rdb,
		hub:      hub,
		registry: registry,
		subs:     make(map[string]*subEntry),
	}
}

// Subscribe ensures that the process is subscribed to the room's channel;
// subsequent calls for the same room only increment the ref-counter.
func (sm *subscriptionManager) Subscribe(roomCode string) {
	sm.mu.Lock()
	if e, ok := sm.subs[roomCode]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	// First consumer → create Redis SUB and fan-out loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, roomChannel(roomCode))

	sm.subs[roomCode] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				sm.deliver(roomCode, []byte(m.Payload))
			}
		}
	}()
}

// Unsubscribe decrements the ref-counter and tears the Redis SUB down when
// the last websocket client leaves the room.
func (sm *subscriptionManager) Unsubscribe(roomCode string) {
	sm.mu.Lock()
	e, ok := sm.subs[roomCode]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, roomCode)
	sm.mu.Unlock()

	// Outside the lock → stop the fan-out goroutine.
	e.cancel()
}

// deliver routes one published room event to local connections. Targeted
// events resolve exactly one recipient via the registry and are dropped on
// a lookup miss; everything else is a room broadcast, minus the sender's
// connection when the sender is registered locally.
func (sm *subscriptionManager) deliver(roomCode string, payload []byte) {
	var ev RoomEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		zap.L().Warn("ws.event_decode_failed", zap.String("room", roomCode), zap.Error(err))
		return
	}

	if ev.Target != "" {
		conn, ok := sm.registry.Lookup(ev.Target)
		if !ok {
			return // target offline, fire-and-forget
		}
		if err := conn.writeJSON(Envelope{Event: ev.Event, Body: ev.Body}); err != nil {
			zap.L().Debug("ws.targeted_write", zap.String("target", ev.Target), zap.Error(err))
		}
		return
	}

	msg, err := json.Marshal(Envelope{Event: ev.Event, Body: ev.Body})
	if err != nil {
		zap.L().Warn("ws.event_encode_failed", zap.Error(err))
		return
	}

	var except sink
	if ev.Sender != "" {
		if conn, ok := sm.registry.Lookup(ev.Sender); ok {
			except = conn
		}
	}
	sm.hub.BroadcastExcept(roomCode, except, msg)
}
