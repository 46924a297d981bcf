package models

import "time"

// PresenceEntry is one connection's membership in a room.
type PresenceEntry struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Role     string    `json:"role,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// OnlineUser is a roster line with every connection of one user collapsed.
type OnlineUser struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Role        string `json:"role,omitempty"`
	Connections int    `json:"connections"`
}
