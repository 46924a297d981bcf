package models

import "time"

// TypingEntry marks a user as composing a message until ExpiresAt.
type TypingEntry struct {
	UserID    string
	UserName  string
	ExpiresAt time.Time
}
