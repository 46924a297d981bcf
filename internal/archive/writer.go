// Package archive mirrors room message log changes into the history store.
package archive

import (
	"context"
	"log"
	"time"

	"broadcast-room/internal/models"
	"broadcast-room/internal/observability"
	"broadcast-room/internal/repositories"
	"broadcast-room/internal/room"
)

const writeTimeout = 5 * time.Second

type entry struct {
	roomID string
	change room.Change
}

// Writer is a write-behind room.Archiver. Record never blocks the room; a
// full queue drops the change.
type Writer struct {
	repo  repositories.MessageRepository
	queue chan entry
	done  chan struct{}
}

func NewWriter(repo repositories.MessageRepository, size int) *Writer {
	if size <= 0 {
		size = 1
	}
	return &Writer{
		repo:  repo,
		queue: make(chan entry, size),
		done:  make(chan struct{}),
	}
}

func (w *Writer) Record(roomID string, change room.Change) {
	select {
	case w.queue <- entry{roomID: roomID, change: change}:
	default:
		observability.IncArchiveDropped()
		log.Printf("archive queue full, dropping %s room=%s message_id=%s", change.Op, roomID, change.Message.ID)
	}
}

// RecentMessages seeds rooms from the store.
func (w *Writer) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	return w.repo.RecentMessages(ctx, roomID, limit)
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case e := <-w.queue:
			w.write(context.Background(), e)
		}
	}
}

// Done is closed once Run has flushed and returned.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func (w *Writer) flush() {
	for {
		select {
		case e := <-w.queue:
			w.write(context.Background(), e)
		default:
			return
		}
	}
}

func (w *Writer) write(parent context.Context, e entry) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()

	msg := e.change.Message
	msg.RoomID = e.roomID

	var err error
	switch e.change.Op {
	case room.ChangeAppend:
		err = w.repo.InsertMessage(ctx, msg)
	case room.ChangeEdit:
		editedAt := msg.Timestamp
		if msg.EditedAt != nil {
			editedAt = *msg.EditedAt
		}
		err = w.repo.UpdateMessage(ctx, e.roomID, msg.ID, msg.Content, editedAt)
	case room.ChangeDelete:
		err = w.repo.DeleteMessage(ctx, e.roomID, msg.ID)
	default:
		log.Printf("archive unknown change op=%s", e.change.Op)
		return
	}
	if err != nil {
		log.Printf("archive %s failed room=%s message_id=%s: %v", e.change.Op, e.roomID, msg.ID, err)
	}
}
