package room

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broadcast-room/internal/models"
	"broadcast-room/internal/protocol"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestState() *State {
	return NewState(Config{HistorySize: 5, InitialMessages: 3, TypingTTL: 5 * time.Second, MaxContentLength: 20})
}

func join(t *testing.T, s *State, connID, userID, userName string, at time.Time) Result {
	t.Helper()
	res := s.Apply(connID, protocol.JoinBroadcast{UserID: userID, UserName: userName}, at)
	require.NoError(t, res.Err)
	return res
}

// received returns the events delivered to connID, in order.
func received(res Result, connID string) []protocol.Outbound {
	var out []protocol.Outbound
	for _, d := range res.Deliveries {
		for _, to := range d.To {
			if to == connID {
				out = append(out, d.Event)
			}
		}
	}
	return out
}

func eventNames(events []protocol.Outbound) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.OutboundEvent())
	}
	return names
}

func TestJoinSendsHistoryAndRoster(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	s.Apply("a", protocol.SendMessage{Content: "first"}, t0)

	res := join(t, s, "b", "u2", "bob", t0.Add(time.Second))

	assert.Equal(t, []string{protocol.EventInitialMessages, protocol.EventOnlineUsers}, eventNames(received(res, "b")))
	assert.Equal(t, []string{protocol.EventOnlineUsers, protocol.EventUserJoined}, eventNames(received(res, "a")))

	history := received(res, "b")[0].(protocol.InitialMessages)
	require.Len(t, history, 1)
	assert.Equal(t, "first", history[0].Content)

	roster := received(res, "a")[0].(protocol.OnlineUsers)
	assert.Equal(t, 2, roster.Count)
	assert.Equal(t, "a", roster.Users[0].ID)
	assert.Equal(t, "b", roster.Users[1].ID)
}

func TestJoinTwiceIsRejected(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)

	res := s.Apply("a", protocol.JoinBroadcast{UserID: "u1", UserName: "alice"}, t0)

	assert.ErrorIs(t, res.Err, ErrAlreadyJoined)
	assert.Equal(t, []string{protocol.EventError}, eventNames(received(res, "a")))
	assert.Equal(t, 1, s.Online())
}

func TestJoinRequiresIdentity(t *testing.T) {
	s := newTestState()
	res := s.Apply("a", protocol.JoinBroadcast{UserID: "u1"}, t0)
	assert.ErrorIs(t, res.Err, ErrMissingIdentity)
	assert.Equal(t, 0, s.Online())
}

func TestRosterCountTracksOpenConnections(t *testing.T) {
	s := newTestState()
	ops := []struct {
		join   bool
		connID string
		want   int
	}{
		{true, "a", 1},
		{true, "b", 2},
		{true, "c", 3},
		{false, "b", 2},
		{false, "b", 2},
		{false, "zz", 2},
		{true, "d", 3},
		{false, "a", 2},
		{false, "c", 1},
		{false, "d", 0},
		{false, "d", 0},
	}

	for i, op := range ops {
		at := t0.Add(time.Duration(i) * time.Second)
		var res Result
		if op.join {
			res = join(t, s, op.connID, "u-"+op.connID, op.connID, at)
		} else {
			res = s.Leave(op.connID, at)
		}
		require.Equal(t, op.want, s.Online(), "step %d", i)
		for _, d := range res.Deliveries {
			if roster, ok := d.Event.(protocol.OnlineUsers); ok {
				assert.Equal(t, op.want, roster.Count, "step %d", i)
				assert.Len(t, roster.Users, op.want, "step %d", i)
			}
		}
	}
}

func TestMultipleDevicesAreTrackedPerConnection(t *testing.T) {
	s := newTestState()
	join(t, s, "phone", "u1", "alice", t0)
	join(t, s, "laptop", "u1", "alice", t0.Add(time.Second))

	assert.Equal(t, 2, s.Online())
	users := s.Users()
	require.Len(t, users, 1)
	assert.Equal(t, 2, users[0].Connections)

	s.Leave("phone", t0.Add(2*time.Second))
	assert.Equal(t, 1, s.Online())
}

func TestLeaveNotifiesRemainingConnections(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)

	res := s.Leave("b", t0.Add(time.Minute))

	assert.Equal(t, []string{protocol.EventOnlineUsers, protocol.EventUserLeft}, eventNames(received(res, "a")))
	assert.Empty(t, received(res, "b"))
	left := received(res, "a")[1].(protocol.UserLeft)
	assert.Equal(t, "bob", left.UserName)
}

func TestSendHelloScenario(t *testing.T) {
	s := newTestState()
	res := join(t, s, "a", "u1", "alice", t0)
	roster := received(res, "a")[1].(protocol.OnlineUsers)
	assert.Equal(t, 1, roster.Count)

	res = s.Apply("a", protocol.SendMessage{UserID: "u1", UserName: "alice", Content: "hello"}, t0.Add(time.Second))
	require.NoError(t, res.Err)

	events := received(res, "a")
	require.Len(t, events, 1)
	msg := events[0].(protocol.NewMessage)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, "alice", msg.UserName)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, t0.Add(time.Second), msg.Timestamp)
	assert.False(t, msg.Edited)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, ChangeAppend, res.Changes[0].Op)
}

func TestSendRejections(t *testing.T) {
	tests := []struct {
		name string
		join bool
		ev   protocol.SendMessage
		want error
	}{
		{name: "before join", join: false, ev: protocol.SendMessage{Content: "hi"}, want: ErrNotJoined},
		{name: "empty content no image", join: true, ev: protocol.SendMessage{}, want: ErrEmptyMessage},
		{name: "whitespace content", join: true, ev: protocol.SendMessage{Content: "  \n"}, want: ErrEmptyMessage},
		{name: "too long", join: true, ev: protocol.SendMessage{Content: strings.Repeat("x", 21)}, want: ErrContentTooLong},
		{name: "spoofed user", join: true, ev: protocol.SendMessage{UserID: "u2", Content: "hi"}, want: ErrIdentityMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState()
			join(t, s, "other", "u9", "zed", t0)
			if tt.join {
				join(t, s, "a", "u1", "alice", t0)
			}

			res := s.Apply("a", tt.ev, t0)

			assert.ErrorIs(t, res.Err, tt.want)
			require.Len(t, res.Deliveries, 1)
			assert.Equal(t, []string{"a"}, res.Deliveries[0].To)
			assert.Equal(t, protocol.Error{Message: tt.want.Error()}, res.Deliveries[0].Event)
			assert.Empty(t, res.Changes)
			assert.Empty(t, s.Snapshot(0))
		})
	}
}

func TestSendImageWithoutContent(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)

	res := s.Apply("a", protocol.SendMessage{ImageURL: "https://cdn.example/cat.png"}, t0)

	require.NoError(t, res.Err)
	msg := received(res, "a")[0].(protocol.NewMessage)
	assert.Equal(t, "https://cdn.example/cat.png", msg.ImageURL)
	assert.Empty(t, msg.Content)
}

func TestEditByOwner(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)
	sent := received(s.Apply("a", protocol.SendMessage{Content: "helo"}, t0), "a")[0].(protocol.NewMessage)

	editAt := t0.Add(time.Minute)
	res := s.Apply("a", protocol.EditMessage{MessageID: sent.ID, NewContent: "hello"}, editAt)

	require.NoError(t, res.Err)
	for _, conn := range []string{"a", "b"} {
		events := received(res, conn)
		require.Len(t, events, 1)
		edited := events[0].(protocol.MessageEdited)
		assert.Equal(t, "hello", edited.Content)
		assert.True(t, edited.Edited)
		require.NotNil(t, edited.EditedAt)
		assert.Equal(t, editAt, *edited.EditedAt)
		assert.Equal(t, sent.ID, edited.ID)
		assert.Equal(t, "u1", edited.UserID)
	}
}

func TestEditAndDeleteByNonOwnerAreRejected(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)
	sent := received(s.Apply("a", protocol.SendMessage{Content: "mine"}, t0), "a")[0].(protocol.NewMessage)

	for _, ev := range []protocol.Inbound{
		protocol.EditMessage{MessageID: sent.ID, UserID: "u2", NewContent: "yours"},
		protocol.EditMessage{MessageID: sent.ID, NewContent: "yours"},
		protocol.DeleteMessage{MessageID: sent.ID, UserID: "u2"},
		protocol.DeleteMessage{MessageID: sent.ID},
	} {
		res := s.Apply("b", ev, t0.Add(time.Second))

		assert.ErrorIs(t, res.Err, ErrNotOwner)
		assert.Empty(t, received(res, "a"))
		assert.Equal(t, []string{protocol.EventError}, eventNames(received(res, "b")))
		assert.Empty(t, res.Changes)
	}

	stored, ok := s.store.FindByID(sent.ID)
	require.True(t, ok)
	assert.Equal(t, "mine", stored.Content)
	assert.False(t, stored.Edited)
}

func TestEditUnknownMessage(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)

	res := s.Apply("a", protocol.EditMessage{MessageID: "nope", NewContent: "x"}, t0)
	assert.ErrorIs(t, res.Err, ErrMessageNotFound)

	res = s.Apply("a", protocol.DeleteMessage{MessageID: "nope"}, t0)
	assert.ErrorIs(t, res.Err, ErrMessageNotFound)
}

func TestEditToEmptyKeepsImageMessages(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	text := received(s.Apply("a", protocol.SendMessage{Content: "caption"}, t0), "a")[0].(protocol.NewMessage)
	image := received(s.Apply("a", protocol.SendMessage{Content: "caption", ImageURL: "https://x/y.png"}, t0), "a")[0].(protocol.NewMessage)

	res := s.Apply("a", protocol.EditMessage{MessageID: text.ID, NewContent: ""}, t0)
	assert.ErrorIs(t, res.Err, ErrEmptyMessage)

	res = s.Apply("a", protocol.EditMessage{MessageID: image.ID, NewContent: ""}, t0)
	assert.NoError(t, res.Err)
}

func TestDeleteBroadcastsIDAndDropsFromHistory(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)
	sent := received(s.Apply("a", protocol.SendMessage{Content: "oops"}, t0), "a")[0].(protocol.NewMessage)

	res := s.Apply("a", protocol.DeleteMessage{MessageID: sent.ID}, t0)

	require.NoError(t, res.Err)
	assert.Equal(t, []protocol.Outbound{protocol.MessageDeleted{MessageID: sent.ID}}, received(res, "b"))
	require.Len(t, res.Changes, 1)
	assert.Equal(t, ChangeDelete, res.Changes[0].Op)

	late := join(t, s, "c", "u3", "carol", t0)
	assert.Empty(t, received(late, "c")[0].(protocol.InitialMessages))
}

func TestEditedMessageVisibleToLateJoiner(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	sent := received(s.Apply("a", protocol.SendMessage{Content: "draft"}, t0), "a")[0].(protocol.NewMessage)
	s.Apply("a", protocol.EditMessage{MessageID: sent.ID, NewContent: "final"}, t0.Add(time.Second))

	res := join(t, s, "b", "u2", "bob", t0.Add(2*time.Second))

	history := received(res, "b")[0].(protocol.InitialMessages)
	require.Len(t, history, 1)
	assert.Equal(t, "final", history[0].Content)
	assert.True(t, history[0].Edited)
}

func TestInitialMessagesAreBounded(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	for i := 0; i < 8; i++ {
		s.Apply("a", protocol.SendMessage{Content: string(rune('a' + i))}, t0.Add(time.Duration(i)*time.Second))
	}

	res := join(t, s, "b", "u2", "bob", t0.Add(time.Minute))
	history := received(res, "b")[0].(protocol.InitialMessages)

	require.Len(t, history, 3)
	assert.Equal(t, []string{"f", "g", "h"}, []string{history[0].Content, history[1].Content, history[2].Content})
	assert.Len(t, s.Snapshot(0), 5)
}

func TestTypingIsNotEchoedToTyper(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "a2", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)

	res := s.Apply("a", protocol.TypingStart{UserID: "u1", UserName: "alice"}, t0)

	require.NoError(t, res.Err)
	assert.Empty(t, received(res, "a"))
	assert.Empty(t, received(res, "a2"))
	assert.Equal(t, []protocol.Outbound{protocol.UserTyping{UserID: "u1", UserName: "alice"}}, received(res, "b"))

	res = s.Apply("a", protocol.TypingStop{UserID: "u1"}, t0.Add(time.Second))
	assert.Equal(t, []protocol.Outbound{protocol.UserStoppedTyping{UserID: "u1", UserName: "alice"}}, received(res, "b"))
	assert.Empty(t, received(res, "a"))
}

func TestTypingRefreshDoesNotRebroadcast(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)

	s.Apply("a", protocol.TypingStart{}, t0)
	res := s.Apply("a", protocol.TypingStart{}, t0.Add(4*time.Second))

	assert.Empty(t, received(res, "b"))
	assert.Empty(t, received(s.Sweep(t0.Add(6*time.Second)), "b"), "refresh should extend the ttl")
	assert.Len(t, received(s.Sweep(t0.Add(9*time.Second)), "b"), 1)
}

func TestTypingExpiresWithoutStop(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)

	res := s.Apply("a", protocol.TypingStart{}, t0)
	assert.Equal(t, []string{protocol.EventUserTyping}, eventNames(received(res, "b")))

	assert.Empty(t, s.Sweep(t0.Add(4*time.Second)).Deliveries)

	var stops []protocol.Outbound
	for i := 5; i <= 12; i++ {
		stops = append(stops, received(s.Sweep(t0.Add(time.Duration(i)*time.Second)), "b")...)
	}
	assert.Equal(t, []protocol.Outbound{protocol.UserStoppedTyping{UserID: "u1", UserName: "alice"}}, stops)
}

func TestTypingStopWhenNotTypingIsSilent(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)

	res := s.Apply("a", protocol.TypingStop{}, t0)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Deliveries)
}

func TestTypingRequiresJoin(t *testing.T) {
	s := newTestState()
	res := s.Apply("a", protocol.TypingStart{UserID: "u1"}, t0)
	assert.ErrorIs(t, res.Err, ErrNotJoined)
}

func TestLastDeviceLeavingClearsTyping(t *testing.T) {
	s := newTestState()
	join(t, s, "a", "u1", "alice", t0)
	join(t, s, "a2", "u1", "alice", t0)
	join(t, s, "b", "u2", "bob", t0)
	s.Apply("a", protocol.TypingStart{}, t0)

	res := s.Leave("a", t0.Add(time.Second))
	assert.NotContains(t, eventNames(received(res, "b")), protocol.EventUserStoppedTyping)

	res = s.Leave("a2", t0.Add(2*time.Second))
	assert.Contains(t, eventNames(received(res, "b")), protocol.EventUserStoppedTyping)
	assert.Empty(t, s.Sweep(t0.Add(time.Hour)).Deliveries)
}

func TestUnknownInboundIsRejected(t *testing.T) {
	s := newTestState()
	res := s.Apply("a", nil, t0)
	assert.ErrorIs(t, res.Err, protocol.ErrUnknownEvent)
}

func TestSeedKeepsNewest(t *testing.T) {
	s := newTestState()
	var msgs []models.Message
	for i := 0; i < 7; i++ {
		msgs = append(msgs, models.Message{ID: string(rune('0' + i)), Content: "x"})
	}
	s.Seed(msgs)

	snap := s.Snapshot(0)
	require.Len(t, snap, 5)
	assert.Equal(t, "2", snap[0].ID)
	assert.Equal(t, "6", snap[4].ID)
}
