package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	roomsvc "drawboardgo/internal/services/room"
)

// RoomEvent is the cross-instance wire form of one room-scoped event.
// Sender, when set, is excluded from fan-out; Target, when set, makes the
// event a targeted notification delivered through the connection registry.
type RoomEvent struct {
	Event  string          `json:"event"`
	Sender string          `json:"sender,omitempty"`
	Target string          `json:"target,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Publisher pushes room events onto the room's Redis channel. Every
// outbound event takes this path, so per-room delivery order equals
// publish order regardless of how many instances are running.
type Publisher struct {
	rdc *redis.Client
}

func NewPublisher(rdc *redis.Client) *Publisher { return &Publisher{rdc: rdc} }

func roomChannel(roomCode string) string { return "board:" + roomCode + ":events" }

func (p *Publisher) Publish(ctx context.Context, roomCode, event, sender, target string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(RoomEvent{
		Event:  event,
		Sender: sender,
		Target: target,
		Body:   raw,
	})
	if err != nil {
		return err
	}
	return p.rdc.Publish(ctx, roomChannel(roomCode), payload).Err()
}

// NotifyJoinRequest targets the room owner with a pending join request.
// If the owner is not connected anywhere the event is simply dropped by
// the fan-out side — presence is fire-and-forget.
func (p *Publisher) NotifyJoinRequest(ctx context.Context, r *roomsvc.RoomDTO, requesterID, requesterName string) error {
	return p.Publish(ctx, r.Code, EventJoinRequest, "", r.OwnerID, JoinRequestBody{
		RoomCode:             r.Code,
		RequesterID:          requesterID,
		RequesterDisplayName: requesterName,
	})
}

// NotifyMemberStatus fans out the three events a membership change
// produces: a targeted notice to the owner, a targeted notice to the
// affected member, and a room-wide snapshot refresh that also reaches
// clients not yet tracked under their identity.
func (p *Publisher) NotifyMemberStatus(ctx context.Context, r *roomsvc.RoomDTO, memberID, status, message string) error {
	if err := p.Publish(ctx, r.Code, EventMemberStatus, "", r.OwnerID, MemberStatusBody{
		RoomCode: r.Code,
		MemberID: memberID,
		Status:   status,
		Message:  message,
	}); err != nil {
		return err
	}
	if err := p.Publish(ctx, r.Code, EventYourStatus, "", memberID, YourStatusBody{
		RoomCode: r.Code,
		Status:   status,
	}); err != nil {
		return err
	}
	return p.Publish(ctx, r.Code, EventRoomUpdated, "", "", RoomUpdatedBody{Room: r})
}
