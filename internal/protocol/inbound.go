package protocol

// Inbound is the closed set of client -> room events.
type Inbound interface {
	InboundEvent() string
}

// JoinBroadcast performs the join handshake for a connection.
type JoinBroadcast struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Role     string `json:"role,omitempty"`
}

// LeaveBroadcast leaves the room without closing the connection.
type LeaveBroadcast struct{}

// SendMessage appends a message to the room.
type SendMessage struct {
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// EditMessage replaces the content of an owned message.
type EditMessage struct {
	MessageID  string `json:"messageId"`
	UserID     string `json:"userId,omitempty"`
	NewContent string `json:"newContent"`
}

// DeleteMessage removes an owned message.
type DeleteMessage struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId,omitempty"`
}

// TypingStart marks the sender as typing.
type TypingStart struct {
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

// TypingStop clears the sender's typing state.
type TypingStop struct {
	UserID string `json:"userId,omitempty"`
}

func (JoinBroadcast) InboundEvent() string  { return EventJoinBroadcast }
func (LeaveBroadcast) InboundEvent() string { return EventLeaveBroadcast }
func (SendMessage) InboundEvent() string    { return EventSendMessage }
func (EditMessage) InboundEvent() string    { return EventEditMessage }
func (DeleteMessage) InboundEvent() string  { return EventDeleteMessage }
func (TypingStart) InboundEvent() string    { return EventTypingStart }
func (TypingStop) InboundEvent() string     { return EventTypingStop }
