package errs

import "errors"

// Domain sentinel errors, mapped to wire codes by handlers.
var (
	ErrInvalidRoom  = errors.New("room id is missing or malformed")
	ErrRoomFull     = errors.New("room is at capacity")
	ErrJoinFailed   = errors.New("room admission failed")
	ErrRoomNotFound = errors.New("room not found")
	ErrUnauthorized = errors.New("invalid or missing credential")
)

// Wire codes surfaced to clients in room-error events and REST bodies.
const (
	CodeInvalidRoom = "INVALID_ROOM"
	CodeRoomFull    = "ROOM_FULL"
	CodeJoinError   = "JOIN_ERROR"
	CodeAuthError   = "AUTH_ERROR"
)

// Code translates a sentinel into its wire code. Unknown errors surface
// as JOIN_ERROR since admission is the only path that returns errors to
// a connected client.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRoom):
		return CodeInvalidRoom
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, ErrUnauthorized):
		return CodeAuthError
	default:
		return CodeJoinError
	}
}
