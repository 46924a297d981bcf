package room

import (
	"strings"
	"time"

	"broadcast-room/internal/models"
	"broadcast-room/internal/protocol"
)

// Config bounds one room's state.
type Config struct {
	HistorySize      int
	InitialMessages  int
	TypingTTL        time.Duration
	MaxContentLength int
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		HistorySize:      100,
		InitialMessages:  50,
		TypingTTL:        5 * time.Second,
		MaxContentLength: 4096,
	}
}

// Delivery is one outbound event and the connections that receive it.
type Delivery struct {
	To    []string
	Event protocol.Outbound
}

// ChangeOp names a mutation of the message log.
type ChangeOp string

const (
	ChangeAppend ChangeOp = "append"
	ChangeEdit   ChangeOp = "edit"
	ChangeDelete ChangeOp = "delete"
)

// Change describes a message log mutation for mirrors and audit.
type Change struct {
	Op      ChangeOp
	Message models.Message
}

// Result is the outcome of applying one event to the state.
type Result struct {
	Deliveries []Delivery
	Changes    []Change
	// Err is set when the event was rejected; Deliveries then only holds the
	// error event for the offending connection.
	Err error
	// Actor is the identity the event was attributed to, when known.
	Actor *models.PresenceEntry
}

// State is the mutable state of one room: message log, presence and typing.
// It is not safe for concurrent use; a Room serializes access to it.
type State struct {
	cfg      Config
	store    *MessageStore
	presence *PresenceTracker
	typing   *TypingAggregator
}

// NewState builds an empty room state.
func NewState(cfg Config) *State {
	return &State{
		cfg:      cfg,
		store:    NewMessageStore(cfg.HistorySize),
		presence: NewPresenceTracker(),
		typing:   NewTypingAggregator(cfg.TypingTTL),
	}
}

// Seed loads persisted history into the message store.
func (s *State) Seed(msgs []models.Message) {
	s.store.Seed(msgs)
}

// Apply processes one inbound event from connID.
func (s *State) Apply(connID string, in protocol.Inbound, now time.Time) Result {
	switch ev := in.(type) {
	case protocol.JoinBroadcast:
		return s.join(connID, ev, now)
	case protocol.LeaveBroadcast:
		return s.Leave(connID, now)
	case protocol.SendMessage:
		return s.send(connID, ev, now)
	case protocol.EditMessage:
		return s.edit(connID, ev, now)
	case protocol.DeleteMessage:
		return s.remove(connID, ev)
	case protocol.TypingStart:
		return s.typingStart(connID, ev, now)
	case protocol.TypingStop:
		return s.typingStop(connID, ev, now)
	default:
		return s.Reject(connID, protocol.ErrUnknownEvent)
	}
}

// Reject reports err to connID without touching state.
func (s *State) Reject(connID string, err error) Result {
	res := Result{
		Err:        err,
		Deliveries: []Delivery{{To: []string{connID}, Event: protocol.Error{Message: err.Error()}}},
	}
	if entry, ok := s.presence.Get(connID); ok {
		res.Actor = &entry
	}
	return res
}

// Leave removes the presence entry of connID. It is a no-op for connections
// that never joined, so repeated disconnects are safe.
func (s *State) Leave(connID string, now time.Time) Result {
	entry, ok := s.presence.Remove(connID)
	if !ok {
		return Result{}
	}

	everyone := s.presence.ConnectionIDs()
	res := Result{Actor: &entry}
	res.Deliveries = append(res.Deliveries,
		Delivery{To: everyone, Event: s.roster()},
		Delivery{To: everyone, Event: protocol.UserLeft{UserName: entry.UserName, Timestamp: now}},
	)

	if !s.presence.HasUser(entry.UserID) {
		if typing, ok := s.typing.Stop(entry.UserID); ok {
			res.Deliveries = append(res.Deliveries, s.stoppedTyping(typing))
		}
	}
	return res
}

// Sweep expires stale typing entries.
func (s *State) Sweep(now time.Time) Result {
	var res Result
	for _, entry := range s.typing.Expire(now) {
		res.Deliveries = append(res.Deliveries, s.stoppedTyping(entry))
	}
	return res
}

// Snapshot returns up to limit recent messages, oldest first.
func (s *State) Snapshot(limit int) []models.Message {
	return s.store.Snapshot(limit)
}

// Roster returns the per-connection roster.
func (s *State) Roster() protocol.OnlineUsers {
	return s.roster()
}

// Users returns the roster collapsed per user.
func (s *State) Users() []models.OnlineUser {
	return s.presence.Users()
}

// Online is the number of joined connections.
func (s *State) Online() int {
	return s.presence.Count()
}

func (s *State) join(connID string, ev protocol.JoinBroadcast, now time.Time) Result {
	if _, ok := s.presence.Get(connID); ok {
		return s.Reject(connID, ErrAlreadyJoined)
	}
	if strings.TrimSpace(ev.UserID) == "" || strings.TrimSpace(ev.UserName) == "" {
		return s.Reject(connID, ErrMissingIdentity)
	}

	entry := models.PresenceEntry{
		ID:       connID,
		UserID:   ev.UserID,
		UserName: ev.UserName,
		Role:     ev.Role,
		JoinedAt: now,
	}
	s.presence.Add(entry)

	return Result{
		Actor: &entry,
		Deliveries: []Delivery{
			{To: []string{connID}, Event: protocol.InitialMessages(s.store.Snapshot(s.cfg.InitialMessages))},
			{To: s.presence.ConnectionIDs(), Event: s.roster()},
			{To: s.except(connID), Event: protocol.UserJoined{UserName: entry.UserName, Timestamp: now}},
		},
	}
}

func (s *State) send(connID string, ev protocol.SendMessage, now time.Time) Result {
	entry, err := s.member(connID, ev.UserID)
	if err != nil {
		return s.Reject(connID, err)
	}
	if err := s.validContent(ev.Content, ev.ImageURL != ""); err != nil {
		return s.Reject(connID, err)
	}

	msg := s.store.Append(models.Message{
		UserID:   entry.UserID,
		UserName: entry.UserName,
		Content:  ev.Content,
		ImageURL: ev.ImageURL,
	}, now)

	return Result{
		Actor:      &entry,
		Deliveries: []Delivery{{To: s.presence.ConnectionIDs(), Event: protocol.NewMessage{Message: msg}}},
		Changes:    []Change{{Op: ChangeAppend, Message: msg}},
	}
}

func (s *State) edit(connID string, ev protocol.EditMessage, now time.Time) Result {
	entry, err := s.member(connID, ev.UserID)
	if err != nil {
		return s.Reject(connID, err)
	}
	msg, err := s.owned(ev.MessageID, entry)
	if err != nil {
		return s.Reject(connID, err)
	}
	if err := s.validContent(ev.NewContent, msg.HasImage()); err != nil {
		return s.Reject(connID, err)
	}

	updated, _ := s.store.Update(msg.ID, ev.NewContent, now)
	return Result{
		Actor:      &entry,
		Deliveries: []Delivery{{To: s.presence.ConnectionIDs(), Event: protocol.MessageEdited{Message: updated}}},
		Changes:    []Change{{Op: ChangeEdit, Message: updated}},
	}
}

func (s *State) remove(connID string, ev protocol.DeleteMessage) Result {
	entry, err := s.member(connID, ev.UserID)
	if err != nil {
		return s.Reject(connID, err)
	}
	msg, err := s.owned(ev.MessageID, entry)
	if err != nil {
		return s.Reject(connID, err)
	}

	s.store.Remove(msg.ID)
	return Result{
		Actor:      &entry,
		Deliveries: []Delivery{{To: s.presence.ConnectionIDs(), Event: protocol.MessageDeleted{MessageID: msg.ID}}},
		Changes:    []Change{{Op: ChangeDelete, Message: msg}},
	}
}

func (s *State) typingStart(connID string, ev protocol.TypingStart, now time.Time) Result {
	entry, err := s.member(connID, ev.UserID)
	if err != nil {
		return s.Reject(connID, err)
	}

	res := s.Sweep(now)
	res.Actor = &entry
	if s.typing.Start(entry.UserID, entry.UserName, now) {
		res.Deliveries = append(res.Deliveries, Delivery{
			To:    s.exceptUser(entry.UserID),
			Event: protocol.UserTyping{UserID: entry.UserID, UserName: entry.UserName},
		})
	}
	return res
}

func (s *State) typingStop(connID string, ev protocol.TypingStop, now time.Time) Result {
	entry, err := s.member(connID, ev.UserID)
	if err != nil {
		return s.Reject(connID, err)
	}

	res := s.Sweep(now)
	res.Actor = &entry
	if typing, ok := s.typing.Stop(entry.UserID); ok {
		res.Deliveries = append(res.Deliveries, s.stoppedTyping(typing))
	}
	return res
}

// member resolves the joined identity of connID. A non-empty claimed user
// id must match it.
func (s *State) member(connID, claimedUserID string) (models.PresenceEntry, error) {
	entry, ok := s.presence.Get(connID)
	if !ok {
		return models.PresenceEntry{}, ErrNotJoined
	}
	if claimedUserID != "" && claimedUserID != entry.UserID {
		return models.PresenceEntry{}, ErrIdentityMismatch
	}
	return entry, nil
}

func (s *State) owned(messageID string, entry models.PresenceEntry) (models.Message, error) {
	msg, ok := s.store.FindByID(messageID)
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if msg.UserID != entry.UserID {
		return models.Message{}, ErrNotOwner
	}
	return msg, nil
}

func (s *State) validContent(content string, hasImage bool) error {
	if strings.TrimSpace(content) == "" && !hasImage {
		return ErrEmptyMessage
	}
	if s.cfg.MaxContentLength > 0 && len(content) > s.cfg.MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

func (s *State) roster() protocol.OnlineUsers {
	users := s.presence.List()
	return protocol.OnlineUsers{Users: users, Count: len(users)}
}

func (s *State) stoppedTyping(entry models.TypingEntry) Delivery {
	return Delivery{
		To:    s.exceptUser(entry.UserID),
		Event: protocol.UserStoppedTyping{UserID: entry.UserID, UserName: entry.UserName},
	}
}

func (s *State) except(connID string) []string {
	var ids []string
	for _, id := range s.presence.ConnectionIDs() {
		if id != connID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *State) exceptUser(userID string) []string {
	var ids []string
	for _, entry := range s.presence.List() {
		if entry.UserID != userID {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}
