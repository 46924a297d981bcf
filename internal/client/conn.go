package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"broadcast-room/internal/protocol"
)

// conn wraps websocket.Conn with timeouts and the room envelope codec.
type conn struct {
	ws           *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newConn(ws *websocket.Conn, readTimeout, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

func (c *conn) read(ctx context.Context) (json.RawMessage, error) {
	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}
	var frame json.RawMessage
	err := wsjson.Read(ctx, c.ws, &frame)
	return frame, err
}

func (c *conn) write(ctx context.Context, in protocol.Inbound) error {
	frame, err := protocol.EncodeInbound(in)
	if err != nil {
		return WrapError(CodeSerialization, "encode "+in.InboundEvent(), err)
	}
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return wsjson.Write(ctx, c.ws, json.RawMessage(frame))
}

func (c *conn) close(code websocket.StatusCode, reason string) error {
	return c.ws.Close(code, reason)
}
