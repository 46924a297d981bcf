package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"broadcast-room/internal/observability"
	"broadcast-room/internal/protocol"
	"broadcast-room/internal/room"
)

const maxFrameSize = 64 << 10

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options tunes the per-connection pumps. Tracer defaults to the global
// provider.
type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	Tracer       trace.Tracer
}

// Rooms hands out a running room per connection. release is called once the
// connection is gone.
type Rooms interface {
	Acquire(id string) (rm *room.Room, release func(), err error)
}

// Handler upgrades HTTP requests and bridges each connection to a room.
type Handler struct {
	hub         *Hub
	rooms       Rooms
	defaultRoom string
	opts        Options
	tracer      trace.Tracer
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *Hub, rooms Rooms, defaultRoom string, opts Options) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("broadcast-room/ws")
	}
	return &Handler{
		hub:         hub,
		rooms:       rooms,
		defaultRoom: defaultRoom,
		opts:        opts,
		tracer:      opts.Tracer,
	}
}

// Handle upgrades the connection and starts its pumps. The room is taken
// from the room_id path parameter, falling back to the default room.
func (h *Handler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		roomID = h.defaultRoom
	}
	if !roomIDPattern.MatchString(roomID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	rm, release, err := h.rooms.Acquire(roomID)
	if err != nil {
		log.Printf("websocket rejected room=%s: %v", roomID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "ws.handshake", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request.WithContext(ctx), nil)
	if err != nil {
		release()
		log.Printf("websocket upgrade failed room=%s: %v", roomID, err)
		return
	}

	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		RoomID:      roomID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.SetAttributes(attribute.String("ws.conn_id", info.ConnID))

	cl := h.hub.register(info, h.opts.SendBuffer)
	publishWSEvent(context.Background(), info, "ws_connect", "")

	// Event spans outlive the request, so they hang off the handshake span
	// context rather than the request context.
	connCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
	go h.writePump(conn, cl)
	go h.readPump(connCtx, conn, rm, release, info)
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, rm *room.Room, release func(), info ConnInfo) {
	var closeReason string
	defer func() {
		if err := rm.Disconnect(ctx, info.ConnID); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			log.Printf("room disconnect failed conn_id=%s: %v", info.ConnID, err)
		}
		release()
		h.hub.unregister(info.ConnID)
		publishWSEvent(ctx, info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishWSEvent(ctx, info, "ws_error", closeReason)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		if err := h.dispatch(ctx, rm, info, data); err != nil {
			closeReason = err.Error()
			return
		}
	}
}

// dispatch decodes one frame and hands it to the room. Protocol errors are
// reported to the sender; only a closed room ends the connection.
func (h *Handler) dispatch(ctx context.Context, rm *room.Room, info ConnInfo, data []byte) error {
	in, err := protocol.DecodeInbound(data)
	if err != nil {
		return rm.Reject(ctx, info.ConnID, err)
	}

	eventCtx, span := h.tracer.Start(ctx, "ws.event", trace.WithAttributes(
		attribute.String("room.id", info.RoomID),
		attribute.String("ws.conn_id", info.ConnID),
		attribute.String("ws.event", in.InboundEvent()),
	))
	defer span.End()
	return rm.Dispatch(eventCtx, info.ConnID, in)
}

func (h *Handler) writePump(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(h.opts.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("websocket write error conn_id=%s: %v", cl.info.ConnID, err)
				publishWSEvent(context.Background(), cl.info, "ws_error", err.Error())
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				log.Printf("websocket ping error conn_id=%s: %v", cl.info.ConnID, err)
				return
			}
		}
	}
}
