package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"broadcast-room/internal/protocol"
	"broadcast-room/internal/room"
)

type testServer struct {
	url      string
	hub      *Hub
	registry *room.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, Options{SendBuffer: 16, PongTimeout: 5 * time.Second}, room.Limits{})
}

func newTestServerWith(t *testing.T, opts Options, limits room.Limits) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	registry := room.NewRegistry(ctx, room.Options{
		Config:        room.DefaultConfig(),
		SweepInterval: 50 * time.Millisecond,
		Transport:     hub,
	}, nil, limits)
	handler := NewHandler(hub, registry, "broadcast", opts)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	router.GET("/ws/rooms/:room_id", handler.Handle)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		registry.Wait()
	})
	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http"), hub: hub, registry: registry}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, in protocol.Inbound) {
	t.Helper()
	frame, err := protocol.EncodeInbound(in)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func next(t *testing.T, conn *websocket.Conn) protocol.Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	out, err := protocol.DecodeOutbound(frame)
	require.NoError(t, err)
	return out
}

func TestHandlerJoinAndBroadcast(t *testing.T) {
	ts := newTestServer(t)
	ann := dial(t, ts.url+"/ws")
	bob := dial(t, ts.url+"/ws")

	send(t, ann, protocol.JoinBroadcast{UserID: "u1", UserName: "Ann"})
	_, ok := next(t, ann).(protocol.InitialMessages)
	require.True(t, ok)
	roster, ok := next(t, ann).(protocol.OnlineUsers)
	require.True(t, ok)
	assert.Equal(t, 1, roster.Count)

	send(t, bob, protocol.JoinBroadcast{UserID: "u2", UserName: "Bob"})
	_, ok = next(t, bob).(protocol.InitialMessages)
	require.True(t, ok)
	roster, ok = next(t, bob).(protocol.OnlineUsers)
	require.True(t, ok)
	assert.Equal(t, 2, roster.Count)

	roster, ok = next(t, ann).(protocol.OnlineUsers)
	require.True(t, ok)
	assert.Equal(t, 2, roster.Count)
	joined, ok := next(t, ann).(protocol.UserJoined)
	require.True(t, ok)
	assert.Equal(t, "Bob", joined.UserName)

	send(t, bob, protocol.SendMessage{Content: "hello"})
	for _, conn := range []*websocket.Conn{ann, bob} {
		msg, ok := next(t, conn).(protocol.NewMessage)
		require.True(t, ok)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, "u2", msg.UserID)
		assert.NotEmpty(t, msg.ID)
	}
}

func TestHandlerMalformedFrameKeepsConnection(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts.url+"/ws")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	errEvent, ok := next(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.NotEmpty(t, errEvent.Message)

	send(t, conn, protocol.SendMessage{Content: "before join"})
	errEvent, ok = next(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.Equal(t, room.ErrNotJoined.Error(), errEvent.Message)

	send(t, conn, protocol.JoinBroadcast{UserID: "u1", UserName: "Ann"})
	_, ok = next(t, conn).(protocol.InitialMessages)
	assert.True(t, ok)
}

func TestHandlerDisconnectIsImplicitLeave(t *testing.T) {
	ts := newTestServer(t)
	ann := dial(t, ts.url+"/ws/rooms/lobby")
	bob := dial(t, ts.url+"/ws/rooms/lobby")

	send(t, ann, protocol.JoinBroadcast{UserID: "u1", UserName: "Ann"})
	next(t, ann)
	next(t, ann)
	send(t, bob, protocol.JoinBroadcast{UserID: "u2", UserName: "Bob"})
	next(t, bob)
	next(t, bob)
	next(t, ann)
	next(t, ann)

	require.NoError(t, bob.Close())

	roster, ok := next(t, ann).(protocol.OnlineUsers)
	require.True(t, ok)
	assert.Equal(t, 1, roster.Count)
	left, ok := next(t, ann).(protocol.UserLeft)
	require.True(t, ok)
	assert.Equal(t, "Bob", left.UserName)

	require.Eventually(t, func() bool { return ts.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"lobby"}, ts.registry.IDs())
}

func TestHandlerRoomsAreIndependent(t *testing.T) {
	ts := newTestServer(t)
	a := dial(t, ts.url+"/ws/rooms/alpha")
	b := dial(t, ts.url+"/ws/rooms/beta")

	send(t, a, protocol.JoinBroadcast{UserID: "u1", UserName: "Ann"})
	next(t, a)
	roster, ok := next(t, a).(protocol.OnlineUsers)
	require.True(t, ok)
	assert.Equal(t, 1, roster.Count)

	send(t, b, protocol.JoinBroadcast{UserID: "u2", UserName: "Bob"})
	next(t, b)
	roster, ok = next(t, b).(protocol.OnlineUsers)
	require.True(t, ok)
	assert.Equal(t, 1, roster.Count)

	assert.Equal(t, []string{"alpha", "beta"}, ts.registry.IDs())
}

func TestHandlerRejectsInvalidRoomID(t *testing.T) {
	ts := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(ts.url+"/ws/rooms/bad%20room", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandlerRejectsNewRoomsOverLimit(t *testing.T) {
	ts := newTestServerWith(t, Options{SendBuffer: 16}, room.Limits{MaxRooms: 1})
	dial(t, ts.url+"/ws/rooms/first")

	_, resp, err := websocket.DefaultDialer.Dial(ts.url+"/ws/rooms/second", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	again := dial(t, ts.url+"/ws/rooms/first")
	send(t, again, protocol.JoinBroadcast{UserID: "u1", UserName: "Ann"})
	_, ok := next(t, again).(protocol.InitialMessages)
	assert.True(t, ok)
}

func TestHandlerReleasesIdleRoomsForNewOnes(t *testing.T) {
	ts := newTestServerWith(t, Options{SendBuffer: 16}, room.Limits{MaxRooms: 1, IdleTimeout: 40 * time.Millisecond})
	conn := dial(t, ts.url+"/ws/rooms/short")
	send(t, conn, protocol.JoinBroadcast{UserID: "u1", UserName: "Ann"})
	next(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, ok := ts.registry.Lookup("short")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	other := dial(t, ts.url+"/ws/rooms/other")
	send(t, other, protocol.JoinBroadcast{UserID: "u2", UserName: "Bob"})
	_, ok := next(t, other).(protocol.InitialMessages)
	assert.True(t, ok)
}

func TestHandlerEventSpansJoinHandshakeTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ts := newTestServerWith(t, Options{SendBuffer: 16, Tracer: provider.Tracer("test")}, room.Limits{})
	conn := dial(t, ts.url+"/ws")
	send(t, conn, protocol.JoinBroadcast{UserID: "u1", UserName: "Ann"})
	next(t, conn)

	var handshake, event sdktrace.ReadOnlySpan
	require.Eventually(t, func() bool {
		for _, span := range recorder.Ended() {
			switch span.Name() {
			case "ws.handshake":
				handshake = span
			case "ws.event":
				event = span
			}
		}
		return handshake != nil && event != nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, handshake.SpanContext().TraceID(), event.SpanContext().TraceID())
	assert.Equal(t, handshake.SpanContext().SpanID(), event.Parent().SpanID())
}
