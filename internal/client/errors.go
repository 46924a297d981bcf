package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes client errors.
type ErrorCode int

const (
	// Protocol errors reported by the room.
	CodeUnknown ErrorCode = iota
	CodeNotJoined
	CodeAlreadyJoined
	CodeMissingIdentity
	CodeIdentityMismatch
	CodeEmptyMessage
	CodeContentTooLong
	CodeMessageNotFound
	CodeNotOwner
	CodeMalformedPayload
	CodeUnknownEvent

	// Client-side errors.
	CodeConnection
	CodeDisconnected
	CodeNotConnected
	CodeUpload
	CodeSerialization
	CodeInvalidConfig
)

func (e ErrorCode) String() string {
	switch e {
	case CodeUnknown:
		return "unknown"
	case CodeNotJoined:
		return "not_joined"
	case CodeAlreadyJoined:
		return "already_joined"
	case CodeMissingIdentity:
		return "missing_identity"
	case CodeIdentityMismatch:
		return "identity_mismatch"
	case CodeEmptyMessage:
		return "empty_message"
	case CodeContentTooLong:
		return "content_too_long"
	case CodeMessageNotFound:
		return "message_not_found"
	case CodeNotOwner:
		return "not_owner"
	case CodeMalformedPayload:
		return "malformed_payload"
	case CodeUnknownEvent:
		return "unknown_event"
	case CodeConnection:
		return "connection_error"
	case CodeDisconnected:
		return "disconnected"
	case CodeNotConnected:
		return "not_connected"
	case CodeUpload:
		return "upload_failed"
	case CodeSerialization:
		return "serialization_error"
	case CodeInvalidConfig:
		return "invalid_config"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// room error texts, matched by prefix since some carry detail after a colon.
var protocolMessages = []struct {
	prefix string
	code   ErrorCode
}{
	{"not joined", CodeNotJoined},
	{"already joined", CodeAlreadyJoined},
	{"userId and userName are required", CodeMissingIdentity},
	{"userId does not match joined identity", CodeIdentityMismatch},
	{"message must have content or an image", CodeEmptyMessage},
	{"message content too long", CodeContentTooLong},
	{"message not found", CodeMessageNotFound},
	{"message belongs to another user", CodeNotOwner},
	{"malformed payload", CodeMalformedPayload},
	{"unknown event", CodeUnknownEvent},
}

// ParseErrorMessage maps the text of a room error event to a code.
func ParseErrorMessage(msg string) ErrorCode {
	for _, m := range protocolMessages {
		if strings.HasPrefix(msg, m.prefix) {
			return m.code
		}
	}
	return CodeUnknown
}

// Error is a structured client error.
type Error struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Wrapped: err}
}

// IsProtocolError reports whether err was raised by the room.
func IsProtocolError(err error) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code >= CodeNotJoined && ce.Code <= CodeUnknownEvent
}

// IsConnectionError reports whether err comes from the transport.
func IsConnectionError(err error) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == CodeConnection || ce.Code == CodeDisconnected || ce.Code == CodeNotConnected
}
