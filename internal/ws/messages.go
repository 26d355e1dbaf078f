package ws

import (
	"encoding/json"

	"drawboardgo/internal/services/canvas"
	roomsvc "drawboardgo/internal/services/room"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "draw"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// Inbound event names (client -> server).
const (
	EventJoinRoom = "join-room-channel"
	EventLeave    = "leave-room-channel"
	EventDraw     = "draw"
	EventClear    = "clear"
	EventViewport = "viewport-change"
)

// Outbound event names (server -> client).
const (
	EventInitialState  = "initial-state"
	EventRoomUpdated   = "room-updated"
	EventJoinRequest   = "new-join-request"
	EventMemberStatus  = "member-status-updated"
	EventYourStatus    = "your-status-updated"
	EventViewportState = "viewport-state-update"
)

// ──────────────────────────── Request / Response DTOs ─────────────────────────

type JoinRoomBody struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

type LeaveRoomBody struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

type DrawBody struct {
	RoomCode  string           `json:"roomCode"`
	Operation canvas.Operation `json:"operation"`
}

type ClearBody struct {
	RoomCode string `json:"roomCode"`
}

// ViewportBody carries advisory pan/zoom state. Clients rate-limit
// emission; the server relays without storing.
type ViewportBody struct {
	RoomCode string        `json:"roomCode"`
	Pan      *canvas.Point `json:"pan,omitempty"`
	Zoom     *float64      `json:"zoom,omitempty"`
}

// DrawRelayBody is the outbound form of a relayed operation: subscribers
// get the operation verbatim, without the room code they already know.
type DrawRelayBody struct {
	Operation canvas.Operation `json:"operation"`
}

type InitialStateBody struct {
	Operations []canvas.Operation `json:"operations"`
}

type RoomUpdatedBody struct {
	Room *roomsvc.RoomDTO `json:"room"`
}

type JoinRequestBody struct {
	RoomCode             string `json:"roomCode"`
	RequesterID          string `json:"requesterId"`
	RequesterDisplayName string `json:"requesterDisplayName"`
}

type MemberStatusBody struct {
	RoomCode string `json:"roomCode"`
	MemberID string `json:"memberId"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

type YourStatusBody struct {
	RoomCode string `json:"roomCode"`
	Status   string `json:"status"`
}

type ViewportStateBody struct {
	Pan  *canvas.Point `json:"pan,omitempty"`
	Zoom *float64      `json:"zoom,omitempty"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
