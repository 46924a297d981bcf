package models

import "time"

// Message represents a chat message held in a room's recent history.
type Message struct {
	ID        string     `db:"id" json:"id"`
	RoomID    string     `db:"room_id" json:"-"`
	UserID    string     `db:"user_id" json:"userId"`
	UserName  string     `db:"user_name" json:"userName"`
	Content   string     `db:"content" json:"content"`
	ImageURL  string     `db:"image_url" json:"imageUrl,omitempty"`
	Timestamp time.Time  `db:"created_at" json:"timestamp"`
	Edited    bool       `db:"edited" json:"edited"`
	EditedAt  *time.Time `db:"edited_at" json:"editedAt,omitempty"`
}

// HasImage reports whether the message carries an attachment.
func (m Message) HasImage() bool {
	return m.ImageURL != ""
}
