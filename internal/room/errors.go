package room

import (
	"errors"

	"broadcast-room/internal/protocol"
)

// Protocol violations. Each is reported to the offending connection as an
// error event and never mutates room state.
var (
	ErrNotJoined        = errors.New("not joined")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrMissingIdentity  = errors.New("userId and userName are required")
	ErrIdentityMismatch = errors.New("userId does not match joined identity")
	ErrEmptyMessage     = errors.New("message must have content or an image")
	ErrContentTooLong   = errors.New("message content too long")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotOwner         = errors.New("message belongs to another user")
	ErrRoomClosed       = errors.New("room closed")
)

// ErrTooManyRooms is returned by Registry.Acquire once MaxRooms rooms run.
var ErrTooManyRooms = errors.New("room limit reached")

var reasons = []struct {
	err    error
	reason string
}{
	{ErrNotJoined, "not_joined"},
	{ErrAlreadyJoined, "already_joined"},
	{ErrMissingIdentity, "missing_identity"},
	{ErrIdentityMismatch, "identity_mismatch"},
	{ErrEmptyMessage, "empty_message"},
	{ErrContentTooLong, "content_too_long"},
	{ErrMessageNotFound, "message_not_found"},
	{ErrNotOwner, "not_owner"},
	{protocol.ErrUnknownEvent, "unknown_event"},
	{protocol.ErrMalformedPayload, "malformed_payload"},
}

// Reason maps a rejection to a short metric label.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}
