package room

import (
	"context"
	"fmt"
	"log"
	"time"

	"broadcast-room/internal/models"
	"broadcast-room/internal/observability"
	"broadcast-room/internal/protocol"
)

// Transport hands an encoded frame to one connection. It must not block.
type Transport interface {
	Deliver(connID string, frame []byte) bool
}

// Archiver mirrors message log changes somewhere durable. It must not block.
type Archiver interface {
	Record(roomID string, change Change)
}

// Auditor receives audit lines for mutations and rejections.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID string, userID *string)
}

// Options configures a Room. AuditorFor, when set, scopes the auditor to
// the room and takes precedence over Auditor.
type Options struct {
	Config        Config
	SweepInterval time.Duration
	InboxSize     int
	Transport     Transport
	Archiver      Archiver
	Auditor       Auditor
	AuditorFor    func(roomID string) Auditor
	Clock         func() time.Time
}

type command func(s *State, now time.Time) Result

// Room owns one room's State and applies every operation on a single
// goroutine, in arrival order.
type Room struct {
	id            string
	state         *State
	inbox         chan command
	sweepInterval time.Duration
	transport     Transport
	archiver      Archiver
	auditor       Auditor
	now           func() time.Time
	done          chan struct{}
}

// New builds a room. Call Run to start processing.
func New(id string, opts Options) *Room {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Second
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.AuditorFor != nil {
		opts.Auditor = opts.AuditorFor(id)
	}
	return &Room{
		id:            id,
		state:         NewState(opts.Config),
		inbox:         make(chan command, opts.InboxSize),
		sweepInterval: opts.SweepInterval,
		transport:     opts.Transport,
		archiver:      opts.Archiver,
		auditor:       opts.Auditor,
		now:           opts.Clock,
		done:          make(chan struct{}),
	}
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

// Seed loads history. It must be called before Run.
func (r *Room) Seed(msgs []models.Message) {
	r.state.Seed(msgs)
}

// Done is closed once Run returns.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Run processes commands and typing sweeps until ctx is cancelled.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("room stopped room=%s", r.id)
			return
		case cmd := <-r.inbox:
			r.publish(ctx, cmd(r.state, r.now()))
		case <-ticker.C:
			r.publish(ctx, r.state.Sweep(r.now()))
		}
	}
}

// Dispatch queues an inbound event from connID.
func (r *Room) Dispatch(ctx context.Context, connID string, in protocol.Inbound) error {
	observability.IncRoomInbound(in.InboundEvent())
	return r.do(ctx, func(s *State, now time.Time) Result {
		return s.Apply(connID, in, now)
	})
}

// Reject queues an error event for connID, e.g. for an undecodable frame.
func (r *Room) Reject(ctx context.Context, connID string, err error) error {
	return r.do(ctx, func(s *State, _ time.Time) Result {
		return s.Reject(connID, err)
	})
}

// Disconnect is an implicit leave for a closed connection.
func (r *Room) Disconnect(ctx context.Context, connID string) error {
	return r.do(ctx, func(s *State, now time.Time) Result {
		return s.Leave(connID, now)
	})
}

// Snapshot returns up to limit recent messages.
func (r *Room) Snapshot(ctx context.Context, limit int) ([]models.Message, error) {
	return ask(ctx, r, func(s *State) []models.Message { return s.Snapshot(limit) })
}

// RosterView is a read-only picture of the room's presence.
type RosterView struct {
	Connections []models.PresenceEntry `json:"connections"`
	Users       []models.OnlineUser    `json:"users"`
	Count       int                    `json:"count"`
}

// Roster returns the current presence.
func (r *Room) Roster(ctx context.Context) (RosterView, error) {
	return ask(ctx, r, func(s *State) RosterView {
		roster := s.Roster()
		return RosterView{Connections: roster.Users, Users: s.Users(), Count: roster.Count}
	})
}

func ask[T any](ctx context.Context, r *Room, fn func(*State) T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	err := r.do(ctx, func(s *State, _ time.Time) Result {
		reply <- fn(s)
		return Result{}
	})
	if err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-r.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrRoomClosed
		}
	}
}

func (r *Room) do(ctx context.Context, cmd command) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRoomClosed
	}
}

func (r *Room) publish(ctx context.Context, res Result) {
	for _, d := range res.Deliveries {
		if len(d.To) == 0 || r.transport == nil {
			continue
		}
		frame, err := protocol.EncodeOutbound(d.Event)
		if err != nil {
			log.Printf("room encode error room=%s: %v", r.id, err)
			continue
		}
		for _, connID := range d.To {
			r.transport.Deliver(connID, frame)
		}
		observability.AddRoomFanout(d.Event.OutboundEvent(), len(d.To))
	}

	for _, change := range res.Changes {
		if r.archiver != nil {
			r.archiver.Record(r.id, change)
		}
		if change.Op != ChangeAppend {
			r.audit(ctx, "INFO", fmt.Sprintf("message %s room=%s message_id=%s", change.Op, r.id, change.Message.ID), res.Actor)
		}
	}

	if res.Err != nil {
		observability.IncRoomRejection(Reason(res.Err))
		r.audit(ctx, "WARN", fmt.Sprintf("rejected room=%s reason=%q", r.id, res.Err.Error()), res.Actor)
	}

	observability.SetRoomOnline(r.id, r.state.Online())
}

func (r *Room) audit(ctx context.Context, level, text string, actor *models.PresenceEntry) {
	if r.auditor == nil {
		return
	}
	var userID *string
	if actor != nil {
		id := actor.UserID
		userID = &id
	}
	r.auditor.Emit(ctx, level, text, "", userID)
}
