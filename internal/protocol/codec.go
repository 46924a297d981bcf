package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Envelope is the JSON frame carried over the connection in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeInbound frames a client event.
func EncodeInbound(in Inbound) ([]byte, error) {
	return encode(in.InboundEvent(), in)
}

// EncodeOutbound frames a room event.
func EncodeOutbound(out Outbound) ([]byte, error) {
	return encode(out.OutboundEvent(), out)
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DecodeInbound parses a client frame into its typed event.
func DecodeInbound(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var in Inbound
	switch env.Event {
	case EventJoinBroadcast:
		in = &JoinBroadcast{}
	case EventLeaveBroadcast:
		in = &LeaveBroadcast{}
	case EventSendMessage:
		in = &SendMessage{}
	case EventEditMessage:
		in = &EditMessage{}
	case EventDeleteMessage:
		in = &DeleteMessage{}
	case EventTypingStart:
		in = &TypingStart{}
	case EventTypingStop:
		in = &TypingStop{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if err := unmarshalData(env.Data, in); err != nil {
		return nil, err
	}
	return deref(in), nil
}

// DecodeOutbound parses a room frame into its typed event.
func DecodeOutbound(frame []byte) (Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch env.Event {
	case EventInitialMessages:
		return decodeAs[InitialMessages](env.Data)
	case EventOnlineUsers:
		return decodeAs[OnlineUsers](env.Data)
	case EventUserJoined:
		return decodeAs[UserJoined](env.Data)
	case EventUserLeft:
		return decodeAs[UserLeft](env.Data)
	case EventNewMessage:
		return decodeAs[NewMessage](env.Data)
	case EventMessageEdited:
		return decodeAs[MessageEdited](env.Data)
	case EventMessageDeleted:
		return decodeAs[MessageDeleted](env.Data)
	case EventUserTyping:
		return decodeAs[UserTyping](env.Data)
	case EventUserStoppedTyping:
		return decodeAs[UserStoppedTyping](env.Data)
	case EventError:
		return decodeAs[Error](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeAs[T Outbound](data json.RawMessage) (Outbound, error) {
	var out T
	if err := unmarshalData(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// deref hands out inbound events by value so callers can type switch on
// the plain struct types.
func deref(in Inbound) Inbound {
	switch v := in.(type) {
	case *JoinBroadcast:
		return *v
	case *LeaveBroadcast:
		return *v
	case *SendMessage:
		return *v
	case *EditMessage:
		return *v
	case *DeleteMessage:
		return *v
	case *TypingStart:
		return *v
	case *TypingStop:
		return *v
	}
	return in
}
