package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, ev RoomEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return raw
}

func fanoutFixture() (*subscriptionManager, *Hub, *Registry) {
	hub := NewHub()
	registry := NewRegistry()
	return newSubscriptionManager(nil, hub, registry), hub, registry
}

func TestDeliver_BroadcastExcludesSender(t *testing.T) {
	sm, hub, registry := fanoutFixture()

	sender := &mockSink{id: "sender"}
	recv := &mockSink{id: "recv"}
	hub.Join("ABC123", sender)
	hub.Join("ABC123", recv)
	registry.Register("u1", sender)

	sm.deliver("ABC123", mustEvent(t, RoomEvent{
		Event:  EventDraw,
		Sender: "u1",
		Body:   json.RawMessage(`{"operation":{"kind":"stroke"}}`),
	}))

	assert.Empty(t, sender.received(), "sender already has local state")
	require.Len(t, recv.received(), 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(recv.received()[0], &env))
	assert.Equal(t, EventDraw, env.Event)
}

func TestDeliver_ClearReachesSenderToo(t *testing.T) {
	sm, hub, registry := fanoutFixture()

	sender := &mockSink{id: "sender"}
	recv := &mockSink{id: "recv"}
	hub.Join("ABC123", sender)
	hub.Join("ABC123", recv)
	registry.Register("u1", sender)

	// clear events are published without a sender: everyone wipes.
	sm.deliver("ABC123", mustEvent(t, RoomEvent{Event: EventClear}))

	assert.Len(t, sender.received(), 1)
	assert.Len(t, recv.received(), 1)
}

func TestDeliver_TargetedGoesToCurrentConnection(t *testing.T) {
	sm, hub, registry := fanoutFixture()

	old := &mockSink{id: "old"}
	fresh := &mockSink{id: "fresh"}
	hub.Join("ABC123", old)
	hub.Join("ABC123", fresh)
	registry.Register("u2", old)
	registry.Register("u2", fresh) // reconnect supersedes

	sm.deliver("ABC123", mustEvent(t, RoomEvent{
		Event:  EventYourStatus,
		Target: "u2",
		Body:   json.RawMessage(`{"roomCode":"ABC123","status":"approved"}`),
	}))

	assert.Empty(t, old.received(), "superseded connection must not receive targeted events")
	require.Len(t, fresh.received(), 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(fresh.received()[0], &env))
	assert.Equal(t, EventYourStatus, env.Event)
}

func TestDeliver_TargetedDroppedWhenOffline(t *testing.T) {
	sm, hub, _ := fanoutFixture()

	bystander := &mockSink{id: "bystander"}
	hub.Join("ABC123", bystander)

	// No registry entry for the target: fire-and-forget, no queueing.
	sm.deliver("ABC123", mustEvent(t, RoomEvent{
		Event:  EventJoinRequest,
		Target: "owner",
	}))

	assert.Empty(t, bystander.received())
}

func TestDeliver_MalformedPayloadIgnored(t *testing.T) {
	sm, hub, _ := fanoutFixture()

	recv := &mockSink{id: "recv"}
	hub.Join("ABC123", recv)

	sm.deliver("ABC123", []byte("not json"))

	assert.Empty(t, recv.received())
}
