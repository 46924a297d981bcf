package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"broadcast-room/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository persists the room message log.
type MessageRepository interface {
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) error
	UpdateMessage(ctx context.Context, roomID, messageID, content string, editedAt time.Time) error
	DeleteMessage(ctx context.Context, roomID, messageID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// RecentMessages returns up to limit live messages of a room, oldest first.
func (r *MessageRepo) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	query := `SELECT id, room_id, user_id, user_name, content, image_url, created_at, edited, edited_at
        FROM (
            SELECT id, room_id, user_id, user_name, content, image_url, created_at, edited, edited_at
            FROM room_messages
            WHERE room_id=$1 AND deleted = FALSE
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC, id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, roomID, limit)
	return msgs, err
}

// InsertMessage stores a freshly accepted message. Replays are ignored.
func (r *MessageRepo) InsertMessage(ctx context.Context, msg models.Message) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO room_messages
        (id, room_id, user_id, user_name, content, image_url, created_at, edited, edited_at)
        VALUES (:id, :room_id, :user_id, :user_name, :content, :image_url, :created_at, :edited, :edited_at)
        ON CONFLICT (id) DO NOTHING`, msg)
	return err
}

// UpdateMessage rewrites a message body and marks it edited.
func (r *MessageRepo) UpdateMessage(ctx context.Context, roomID, messageID, content string, editedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE room_messages SET content=$1, edited=TRUE, edited_at=$2
        WHERE id=$3 AND room_id=$4 AND deleted = FALSE`, content, editedAt, messageID, roomID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeleteMessage soft-deletes a message so it never seeds a room again.
func (r *MessageRepo) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE room_messages SET deleted=TRUE WHERE id=$1 AND room_id=$2 AND deleted = FALSE`, messageID, roomID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectRow(res rowsAffected) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
