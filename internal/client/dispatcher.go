package client

import (
	"broadcast-room/internal/models"
	"broadcast-room/internal/protocol"
)

// Message is the room message shape delivered to callbacks.
type Message = models.Message

// Dispatcher forwards room events to registered callbacks verbatim.
// Callbacks run on the read goroutine and must be set before Connect.
type Dispatcher struct {
	onInitialMessages   func([]models.Message)
	onOnlineUsers       func(protocol.OnlineUsers)
	onUserJoined        func(protocol.UserJoined)
	onUserLeft          func(protocol.UserLeft)
	onNewMessage        func(models.Message)
	onMessageEdited     func(models.Message)
	onMessageDeleted    func(protocol.MessageDeleted)
	onUserTyping        func(protocol.UserTyping)
	onUserStoppedTyping func(protocol.UserStoppedTyping)
	onError             func(error)
	onStateChange       func(StateEvent)
}

func (d *Dispatcher) SetOnInitialMessages(fn func([]models.Message))             { d.onInitialMessages = fn }
func (d *Dispatcher) SetOnOnlineUsers(fn func(protocol.OnlineUsers))             { d.onOnlineUsers = fn }
func (d *Dispatcher) SetOnUserJoined(fn func(protocol.UserJoined))               { d.onUserJoined = fn }
func (d *Dispatcher) SetOnUserLeft(fn func(protocol.UserLeft))                   { d.onUserLeft = fn }
func (d *Dispatcher) SetOnNewMessage(fn func(models.Message))                    { d.onNewMessage = fn }
func (d *Dispatcher) SetOnMessageEdited(fn func(models.Message))                 { d.onMessageEdited = fn }
func (d *Dispatcher) SetOnMessageDeleted(fn func(protocol.MessageDeleted))       { d.onMessageDeleted = fn }
func (d *Dispatcher) SetOnUserTyping(fn func(protocol.UserTyping))               { d.onUserTyping = fn }
func (d *Dispatcher) SetOnUserStoppedTyping(fn func(protocol.UserStoppedTyping)) { d.onUserStoppedTyping = fn }
func (d *Dispatcher) SetOnError(fn func(error))                                  { d.onError = fn }
func (d *Dispatcher) SetOnStateChange(fn func(StateEvent))                       { d.onStateChange = fn }

func (d *Dispatcher) Dispatch(out protocol.Outbound) {
	switch ev := out.(type) {
	case protocol.InitialMessages:
		if d.onInitialMessages != nil {
			d.onInitialMessages([]models.Message(ev))
		}
	case protocol.OnlineUsers:
		if d.onOnlineUsers != nil {
			d.onOnlineUsers(ev)
		}
	case protocol.UserJoined:
		if d.onUserJoined != nil {
			d.onUserJoined(ev)
		}
	case protocol.UserLeft:
		if d.onUserLeft != nil {
			d.onUserLeft(ev)
		}
	case protocol.NewMessage:
		if d.onNewMessage != nil {
			d.onNewMessage(ev.Message)
		}
	case protocol.MessageEdited:
		if d.onMessageEdited != nil {
			d.onMessageEdited(ev.Message)
		}
	case protocol.MessageDeleted:
		if d.onMessageDeleted != nil {
			d.onMessageDeleted(ev)
		}
	case protocol.UserTyping:
		if d.onUserTyping != nil {
			d.onUserTyping(ev)
		}
	case protocol.UserStoppedTyping:
		if d.onUserStoppedTyping != nil {
			d.onUserStoppedTyping(ev)
		}
	case protocol.Error:
		d.fireError(NewError(ParseErrorMessage(ev.Message), ev.Message))
	}
}

func (d *Dispatcher) fireError(err error) {
	if d.onError != nil && err != nil {
		d.onError(err)
	}
}

func (d *Dispatcher) fireState(ev StateEvent) {
	if d.onStateChange != nil && ev.OldState != ev.NewState {
		d.onStateChange(ev)
	}
}
