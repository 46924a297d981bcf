package room

import (
	"time"

	"github.com/google/uuid"

	"broadcast-room/internal/models"
)

// MessageStore is the bounded recent-history buffer of a room, oldest first.
type MessageStore struct {
	max      int
	messages []models.Message
	newID    func() string
}

// NewMessageStore keeps at most max messages.
func NewMessageStore(max int) *MessageStore {
	if max <= 0 {
		max = 1
	}
	return &MessageStore{
		max:      max,
		messages: make([]models.Message, 0, max),
		newID:    newMessageID,
	}
}

// uuid v7 ids sort by creation time.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Append assigns id and timestamp, evicting the oldest entries past the bound.
func (s *MessageStore) Append(msg models.Message, now time.Time) models.Message {
	msg.ID = s.newID()
	msg.Timestamp = now
	msg.Edited = false
	msg.EditedAt = nil

	s.messages = append(s.messages, msg)
	if len(s.messages) > s.max {
		s.messages = append(s.messages[:0:0], s.messages[len(s.messages)-s.max:]...)
	}
	return msg
}

// Seed replaces the buffer with already persisted messages, keeping the newest.
func (s *MessageStore) Seed(msgs []models.Message) {
	if len(msgs) > s.max {
		msgs = msgs[len(msgs)-s.max:]
	}
	s.messages = append(make([]models.Message, 0, s.max), msgs...)
}

// FindByID returns a copy of the message.
func (s *MessageStore) FindByID(id string) (models.Message, bool) {
	if i := s.index(id); i >= 0 {
		return s.messages[i], true
	}
	return models.Message{}, false
}

// Update rewrites the content of a message and marks it edited.
func (s *MessageStore) Update(id, content string, at time.Time) (models.Message, bool) {
	i := s.index(id)
	if i < 0 {
		return models.Message{}, false
	}
	editedAt := at
	s.messages[i].Content = content
	s.messages[i].Edited = true
	s.messages[i].EditedAt = &editedAt
	return s.messages[i], true
}

// Remove drops a message from the buffer.
func (s *MessageStore) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	return true
}

// Snapshot returns up to limit of the most recent messages, oldest first.
// A non-positive limit returns the whole buffer.
func (s *MessageStore) Snapshot(limit int) []models.Message {
	start := 0
	if limit > 0 && limit < len(s.messages) {
		start = len(s.messages) - limit
	}
	out := make([]models.Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// Len reports the number of buffered messages.
func (s *MessageStore) Len() int {
	return len(s.messages)
}

func (s *MessageStore) index(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
