package room

import (
	"sort"
	"time"

	"broadcast-room/internal/models"
)

// TypingAggregator tracks who is typing. Entries expire after ttl unless refreshed.
type TypingAggregator struct {
	ttl     time.Duration
	entries map[string]models.TypingEntry
}

// NewTypingAggregator creates an aggregator with the given expiry.
func NewTypingAggregator(ttl time.Duration) *TypingAggregator {
	return &TypingAggregator{ttl: ttl, entries: make(map[string]models.TypingEntry)}
}

// Start inserts or refreshes the entry of userID. It reports whether the
// user was not typing before.
func (t *TypingAggregator) Start(userID, userName string, now time.Time) bool {
	_, existed := t.entries[userID]
	t.entries[userID] = models.TypingEntry{
		UserID:    userID,
		UserName:  userName,
		ExpiresAt: now.Add(t.ttl),
	}
	return !existed
}

// Stop removes the entry of userID.
func (t *TypingAggregator) Stop(userID string) (models.TypingEntry, bool) {
	entry, ok := t.entries[userID]
	if ok {
		delete(t.entries, userID)
	}
	return entry, ok
}

// Expire removes and returns every entry whose expiry is not after now.
func (t *TypingAggregator) Expire(now time.Time) []models.TypingEntry {
	var expired []models.TypingEntry
	for userID, entry := range t.entries {
		if !entry.ExpiresAt.After(now) {
			expired = append(expired, entry)
			delete(t.entries, userID)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].UserID < expired[j].UserID })
	return expired
}

// IsTyping reports whether userID currently has an entry.
func (t *TypingAggregator) IsTyping(userID string) bool {
	_, ok := t.entries[userID]
	return ok
}

// Len is the number of users typing.
func (t *TypingAggregator) Len() int {
	return len(t.entries)
}
