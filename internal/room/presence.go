package room

import (
	"sort"

	"broadcast-room/internal/models"
)

// PresenceTracker maps connection ids to presence entries.
type PresenceTracker struct {
	entries map[string]models.PresenceEntry
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{entries: make(map[string]models.PresenceEntry)}
}

// Add inserts an entry. It returns false when the connection is already present.
func (p *PresenceTracker) Add(entry models.PresenceEntry) bool {
	if _, ok := p.entries[entry.ID]; ok {
		return false
	}
	p.entries[entry.ID] = entry
	return true
}

// Remove deletes the entry of a connection. Unknown ids are a no-op.
func (p *PresenceTracker) Remove(connID string) (models.PresenceEntry, bool) {
	entry, ok := p.entries[connID]
	if ok {
		delete(p.entries, connID)
	}
	return entry, ok
}

// Get returns the entry of a connection.
func (p *PresenceTracker) Get(connID string) (models.PresenceEntry, bool) {
	entry, ok := p.entries[connID]
	return entry, ok
}

// Count is the number of joined connections, not of distinct users.
func (p *PresenceTracker) Count() int {
	return len(p.entries)
}

// List returns every entry ordered by join time.
func (p *PresenceTracker) List() []models.PresenceEntry {
	out := make([]models.PresenceEntry, 0, len(p.entries))
	for _, entry := range p.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// ConnectionIDs returns the ids of all joined connections in join order.
func (p *PresenceTracker) ConnectionIDs() []string {
	list := p.List()
	ids := make([]string, 0, len(list))
	for _, entry := range list {
		ids = append(ids, entry.ID)
	}
	return ids
}

// HasUser reports whether any connection of userID is joined.
func (p *PresenceTracker) HasUser(userID string) bool {
	for _, entry := range p.entries {
		if entry.UserID == userID {
			return true
		}
	}
	return false
}

// Users groups the roster by user id for display, in first-join order.
func (p *PresenceTracker) Users() []models.OnlineUser {
	var users []models.OnlineUser
	index := map[string]int{}
	for _, entry := range p.List() {
		if i, ok := index[entry.UserID]; ok {
			users[i].Connections++
			continue
		}
		index[entry.UserID] = len(users)
		users = append(users, models.OnlineUser{
			UserID:      entry.UserID,
			UserName:    entry.UserName,
			Role:        entry.Role,
			Connections: 1,
		})
	}
	if users == nil {
		users = []models.OnlineUser{}
	}
	return users
}
