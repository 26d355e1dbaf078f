package ws

import (
	"errors"
	"regexp"
)

// Room codes are short opaque identifiers: case-insensitive alphanumeric,
// at most 20 characters. Anything else terminates the connection.
var roomCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,20}$`)

// errBadRoomCode is fatal to the connection: the reader loop replies with
// an error envelope and then closes the socket.
var errBadRoomCode = errors.New("invalid_room_code")

var errMissingUserID = errors.New("missing_user_id")

func checkRoomCode(code string) error {
	if !roomCodePattern.MatchString(code) {
		return errBadRoomCode
	}
	return nil
}

func (b *JoinRoomBody) validate() error {
	if b.UserID == "" {
		return errMissingUserID
	}
	return checkRoomCode(b.RoomCode)
}

func (b *LeaveRoomBody) validate() error {
	if b.UserID == "" {
		return errMissingUserID
	}
	return checkRoomCode(b.RoomCode)
}

func (b *DrawBody) validate() error {
	return checkRoomCode(b.RoomCode)
}

func (b *ClearBody) validate() error {
	return checkRoomCode(b.RoomCode)
}

func (b *ViewportBody) validate() error {
	return checkRoomCode(b.RoomCode)
}
