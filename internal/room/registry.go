package room

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"broadcast-room/internal/models"
	"broadcast-room/internal/observability"
)

const seedTimeout = 3 * time.Second

// Seeder loads the archived history of a room.
type Seeder interface {
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

// Limits bounds the rooms a registry keeps alive. Zero values disable the
// corresponding limit.
type Limits struct {
	MaxRooms    int
	IdleTimeout time.Duration
}

type entry struct {
	room      *Room
	cancel    context.CancelFunc
	refs      int
	pinned    bool
	idleSince time.Time
}

// Registry creates rooms on first use and runs each on its own goroutine.
// Rooms without attached connections are stopped after Limits.IdleTimeout
// unless they were started through Get.
type Registry struct {
	ctx    context.Context
	opts   Options
	seeder Seeder
	limits Limits
	now    func() time.Time

	mu    sync.Mutex
	rooms map[string]*entry
	wg    sync.WaitGroup
}

// NewRegistry builds a registry whose rooms stop when ctx is cancelled.
// seeder may be nil.
func NewRegistry(ctx context.Context, opts Options, seeder Seeder, limits Limits) *Registry {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		ctx:    ctx,
		opts:   opts,
		seeder: seeder,
		limits: limits,
		now:    now,
		rooms:  make(map[string]*entry),
	}
	if limits.IdleTimeout > 0 {
		r.wg.Add(1)
		go r.reapLoop()
	}
	return r
}

// Get returns the room with id, starting it if needed, and pins it so it is
// never reaped. Get ignores MaxRooms.
func (r *Registry) Get(id string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[id]
	if !ok {
		e = r.start(id)
	}
	e.pinned = true
	return e.room
}

// Acquire returns the room with id for one connection, starting it if
// allowed. release must be called once the connection is gone.
func (r *Registry) Acquire(id string) (*Room, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[id]
	if !ok {
		if r.limits.MaxRooms > 0 && len(r.rooms) >= r.limits.MaxRooms {
			return nil, nil, ErrTooManyRooms
		}
		e = r.start(id)
	}
	e.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e.refs--
			if e.refs == 0 {
				e.idleSince = r.now()
			}
		})
	}
	return e.room, release, nil
}

// start must be called with r.mu held. Seeding runs on the room goroutine
// so a slow archive never holds the registry lock; commands sent meanwhile
// wait in the inbox.
func (r *Registry) start(id string) *entry {
	ctx, cancel := context.WithCancel(r.ctx)
	rm := New(id, r.opts)
	e := &entry{room: rm, cancel: cancel, idleSince: r.now()}
	r.rooms[id] = e

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.seed(ctx, rm)
		rm.Run(ctx)
	}()
	log.Printf("room started room=%s", id)
	return e
}

func (r *Registry) seed(ctx context.Context, rm *Room) {
	if r.seeder == nil {
		return
	}
	seedCtx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()
	msgs, err := r.seeder.RecentMessages(seedCtx, rm.ID(), r.opts.Config.HistorySize)
	if err != nil {
		log.Printf("room seed failed room=%s: %v", rm.ID(), err)
		return
	}
	rm.Seed(msgs)
}

func (r *Registry) reapLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.limits.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.reap(r.now())
		}
	}
}

// reap stops unpinned rooms idle since before now-IdleTimeout and returns
// their ids.
func (r *Registry) reap(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []string
	for id, e := range r.rooms {
		if e.pinned || e.refs > 0 || now.Sub(e.idleSince) < r.limits.IdleTimeout {
			continue
		}
		delete(r.rooms, id)
		e.cancel()
		observability.DeleteRoomOnline(id)
		reaped = append(reaped, id)
		log.Printf("room reaped room=%s idle=%s", id, now.Sub(e.idleSince))
	}
	sort.Strings(reaped)
	return reaped
}

// Lookup returns an existing room without creating it.
func (r *Registry) Lookup(id string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[id]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// IDs lists the running rooms.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until every room goroutine has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}
