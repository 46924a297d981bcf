// Package protocol defines the events exchanged between a room and its
// connections. Nothing here mutates room state.
package protocol

// Inbound event names (client -> room).
const (
	EventJoinBroadcast  = "join-broadcast"
	EventLeaveBroadcast = "leave-broadcast"
	EventSendMessage    = "send-message"
	EventEditMessage    = "edit-message"
	EventDeleteMessage  = "delete-message"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
)

// Outbound event names (room -> client).
const (
	EventInitialMessages   = "initial-messages"
	EventOnlineUsers       = "online-users"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventNewMessage        = "new-message"
	EventMessageEdited     = "message-edited"
	EventMessageDeleted    = "message-deleted"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventError             = "error"
)
