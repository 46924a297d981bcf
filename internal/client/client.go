package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"

	"broadcast-room/internal/protocol"
)

// Client owns one user's connection to a room. It joins on every
// successful connect, reconnects a bounded number of times after an
// unexpected disconnect and never queues sends while disconnected.
type Client struct {
	cfg        Config
	logger     Logger
	dispatcher Dispatcher
	uploader   *Uploader

	mu           sync.Mutex
	conn         *conn
	state        ConnectionState
	cancel       context.CancelFunc
	reconnecting bool
	typing       bool
	typingTimer  *time.Timer

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient constructs a client. Start from DefaultConfig().
func NewClient(cfg Config) *Client {
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = 3 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		logger: noopLogger{},
		closed: make(chan struct{}),
	}
	if cfg.UploadURL != "" {
		c.uploader = NewUploader(cfg.UploadURL, cfg.HTTPClient)
	}
	return c
}

// SetLogger overrides logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

func (c *Client) OnInitialMessages(fn func([]Message))                    { c.dispatcher.SetOnInitialMessages(fn) }
func (c *Client) OnOnlineUsers(fn func(protocol.OnlineUsers))             { c.dispatcher.SetOnOnlineUsers(fn) }
func (c *Client) OnUserJoined(fn func(protocol.UserJoined))               { c.dispatcher.SetOnUserJoined(fn) }
func (c *Client) OnUserLeft(fn func(protocol.UserLeft))                   { c.dispatcher.SetOnUserLeft(fn) }
func (c *Client) OnNewMessage(fn func(Message))                           { c.dispatcher.SetOnNewMessage(fn) }
func (c *Client) OnMessageEdited(fn func(Message))                        { c.dispatcher.SetOnMessageEdited(fn) }
func (c *Client) OnMessageDeleted(fn func(protocol.MessageDeleted))       { c.dispatcher.SetOnMessageDeleted(fn) }
func (c *Client) OnUserTyping(fn func(protocol.UserTyping))               { c.dispatcher.SetOnUserTyping(fn) }
func (c *Client) OnUserStoppedTyping(fn func(protocol.UserStoppedTyping)) { c.dispatcher.SetOnUserStoppedTyping(fn) }
func (c *Client) OnError(fn func(error))                                  { c.dispatcher.SetOnError(fn) }
func (c *Client) OnStateChange(fn func(StateEvent))                       { c.dispatcher.SetOnStateChange(fn) }

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the room, performs the join handshake and starts reading.
// It is rejected while a reconnect loop is pending.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.cfg.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return NewError(CodeConnection, "client closed")
	case StateConnected, StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return NewError(CodeConnection, "already connected")
	}
	if c.reconnecting {
		c.mu.Unlock()
		return NewError(CodeConnection, "reconnect in progress")
	}
	c.mu.Unlock()

	c.setState(StateConnecting, nil)
	if err := c.dialAndJoin(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return err
	}
	return nil
}

// Send publishes a text message. It fails immediately while disconnected.
func (c *Client) Send(ctx context.Context, content string) error {
	return c.SendWithImage(ctx, content, "")
}

// SendWithImage publishes a message with an already hosted image.
func (c *Client) SendWithImage(ctx context.Context, content, imageURL string) error {
	if content == "" && imageURL == "" {
		return NewError(CodeEmptyMessage, "message must have content or an image")
	}
	err := c.send(ctx, protocol.SendMessage{
		UserID:   c.cfg.UserID,
		UserName: c.cfg.UserName,
		Content:  content,
		ImageURL: imageURL,
	})
	if err != nil {
		return err
	}
	_ = c.StopTyping(ctx)
	return nil
}

// SendImage uploads the image first and only then sends the message. A
// failed upload never reaches the room.
func (c *Client) SendImage(ctx context.Context, content, filename string, image io.Reader) error {
	if c.uploader == nil {
		return NewError(CodeInvalidConfig, "no upload url configured")
	}
	if c.State() != StateConnected {
		return NewError(CodeNotConnected, "not connected")
	}
	imageURL, err := c.uploader.Upload(ctx, filename, image)
	if err != nil {
		return err
	}
	return c.SendWithImage(ctx, content, imageURL)
}

// Edit replaces the content of one of the user's messages.
func (c *Client) Edit(ctx context.Context, messageID, newContent string) error {
	return c.send(ctx, protocol.EditMessage{MessageID: messageID, UserID: c.cfg.UserID, NewContent: newContent})
}

// Delete removes one of the user's messages.
func (c *Client) Delete(ctx context.Context, messageID string) error {
	return c.send(ctx, protocol.DeleteMessage{MessageID: messageID, UserID: c.cfg.UserID})
}

// Leave leaves the room but keeps the connection.
func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, protocol.LeaveBroadcast{})
}

// Keystroke reports typing activity. The first keystroke emits typing-start;
// each one re-arms the local timer which emits typing-stop when it fires.
func (c *Client) Keystroke(ctx context.Context) error {
	c.mu.Lock()
	started := !c.typing
	c.typing = true
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.cfg.TypingTimeout, c.typingExpired)
	c.mu.Unlock()

	if !started {
		return nil
	}
	if err := c.send(ctx, protocol.TypingStart{UserID: c.cfg.UserID, UserName: c.cfg.UserName}); err != nil {
		c.resetTyping()
		return err
	}
	return nil
}

// StopTyping emits typing-stop if the user was typing.
func (c *Client) StopTyping(ctx context.Context) error {
	if !c.resetTyping() {
		return nil
	}
	return c.send(ctx, protocol.TypingStop{UserID: c.cfg.UserID})
}

// Close shuts down the client. It never reconnects afterwards.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.resetTyping()

	c.mu.Lock()
	cn := c.conn
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.setState(StateClosed, nil)
	if cn != nil {
		return cn.close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

func (c *Client) typingExpired() {
	if err := c.StopTyping(context.Background()); err != nil {
		c.logger.Debug("typing stop failed", map[string]any{"error": err.Error()})
	}
}

// resetTyping clears local typing state and reports whether it was set.
func (c *Client) resetTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	was := c.typing
	c.typing = false
	return was
}

func (c *Client) send(ctx context.Context, in protocol.Inbound) error {
	c.mu.Lock()
	cn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || cn == nil {
		return NewError(CodeNotConnected, "not connected")
	}

	if err := cn.write(ctx, in); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return ce
		}
		return WrapError(CodeConnection, "write "+in.InboundEvent(), err)
	}
	return nil
}

func (c *Client) dialAndJoin(ctx context.Context) error {
	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return WrapError(CodeConnection, "dial", err)
	}
	ws.SetReadLimit(1 << 20)
	cn := newConn(ws, c.cfg.ReadTimeout, c.cfg.WriteTimeout)

	join := protocol.JoinBroadcast{UserID: c.cfg.UserID, UserName: c.cfg.UserName, Role: c.cfg.Role}
	if err := cn.write(dialCtx, join); err != nil {
		_ = cn.close(websocket.StatusInternalError, "handshake error")
		return WrapError(CodeConnection, "join handshake", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		cancel()
		_ = cn.close(websocket.StatusNormalClosure, "client close")
		return NewError(CodeConnection, "client closed")
	default:
	}
	prev, prevCancel := c.conn, c.cancel
	c.conn = cn
	c.cancel = cancel
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prev != nil {
		_ = prev.close(websocket.StatusNormalClosure, "replaced")
	}
	c.setState(StateConnected, nil)
	c.logger.Info("joined room", map[string]any{"url": c.cfg.URL, "user_id": c.cfg.UserID})
	go c.readLoop(runCtx, cn)
	return nil
}

func (c *Client) readLoop(ctx context.Context, cn *conn) {
	for {
		frame, err := cn.read(ctx)
		if err != nil {
			if c.isClosed() || ctx.Err() != nil {
				return
			}
			c.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			c.handleDisconnect(cn, err)
			return
		}

		out, err := protocol.DecodeOutbound(frame)
		if err != nil {
			c.dispatcher.fireError(WrapError(CodeSerialization, "decode room event", err))
			continue
		}
		c.dispatcher.Dispatch(out)
	}
}

func (c *Client) handleDisconnect(cn *conn, cause error) {
	c.mu.Lock()
	if c.conn != cn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.reconnecting = true
	c.mu.Unlock()
	_ = cn.close(websocket.StatusGoingAway, "read error")
	c.resetTyping()

	c.setState(StateDisconnected, WrapError(CodeDisconnected, "connection lost", cause))
	go c.reconnect()
}

func (c *Client) reconnect() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-c.closed:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}

		c.setState(StateReconnecting, nil)
		err := c.dialAndJoin(context.Background())
		if err == nil {
			return
		}
		if c.isClosed() {
			return
		}
		c.logger.Warn("reconnect failed", map[string]any{"attempt": attempt, "error": err.Error()})
		c.setState(StateDisconnected, err)
	}

	if !c.isClosed() {
		c.dispatcher.fireError(NewError(CodeDisconnected, "reconnect attempts exhausted"))
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) setState(next ConnectionState, err error) {
	c.mu.Lock()
	prev := c.state
	if prev == StateClosed && next != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()

	c.dispatcher.fireState(StateEvent{OldState: prev, NewState: next, Error: err})
}
