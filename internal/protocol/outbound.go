package protocol

import (
	"time"

	"broadcast-room/internal/models"
)

// Outbound is the closed set of room -> client events.
type Outbound interface {
	OutboundEvent() string
}

// InitialMessages is the history snapshot sent to a joining connection, oldest first.
type InitialMessages []models.Message

// OnlineUsers carries the full per-connection roster.
type OnlineUsers struct {
	Users []models.PresenceEntry `json:"users"`
	Count int                    `json:"count"`
}

// UserJoined announces a new connection in the room.
type UserJoined struct {
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeft announces a connection leaving the room.
type UserLeft struct {
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage carries a freshly appended message.
type NewMessage struct {
	models.Message
}

// MessageEdited carries the message after an edit.
type MessageEdited struct {
	models.Message
}

// MessageDeleted references a removed message.
type MessageDeleted struct {
	MessageID string `json:"messageId"`
}

// UserTyping reports that a user started typing.
type UserTyping struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// UserStoppedTyping reports that a user stopped typing or timed out.
type UserStoppedTyping struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// Error reports a rejected operation to the offending connection.
type Error struct {
	Message string `json:"message"`
}

func (InitialMessages) OutboundEvent() string   { return EventInitialMessages }
func (OnlineUsers) OutboundEvent() string       { return EventOnlineUsers }
func (UserJoined) OutboundEvent() string        { return EventUserJoined }
func (UserLeft) OutboundEvent() string          { return EventUserLeft }
func (NewMessage) OutboundEvent() string        { return EventNewMessage }
func (MessageEdited) OutboundEvent() string     { return EventMessageEdited }
func (MessageDeleted) OutboundEvent() string    { return EventMessageDeleted }
func (UserTyping) OutboundEvent() string        { return EventUserTyping }
func (UserStoppedTyping) OutboundEvent() string { return EventUserStoppedTyping }
func (Error) OutboundEvent() string             { return EventError }
