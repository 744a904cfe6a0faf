package room

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/monitor"
	"github.com/wfunc/tabletop/network"
	"github.com/wfunc/tabletop/persistence"
	"github.com/wfunc/tabletop/timer"
)

// Registry 当前进程内存中的所有房间。锁顺序：Registry.mu 先于 Room.mu
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	store   persistence.Store
	fanout  Broadcaster
	clock   timer.Scheduler
	opts    Options
	metrics *monitor.Metrics
}

func NewRegistry(store persistence.Store, fanout Broadcaster, clock timer.Scheduler, opts Options, metrics *monitor.Metrics) *Registry {
	if clock == nil {
		clock = timer.Real{}
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		store:   store,
		fanout:  fanout,
		clock:   clock,
		opts:    opts.withDefaults(),
		metrics: metrics,
	}
}

// GetOrCreate returns the live room or registers a fresh one with default config.
func (g *Registry) GetOrCreate(roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[roomID]; ok {
		return r
	}
	r := newRoom(roomID, g)
	g.rooms[roomID] = r
	g.metrics.RoomOpened()
	logger.Log.Debugw("room created", "room", roomID)
	return r
}

func (g *Registry) Get(roomID string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

// Delete drops the room from the registry. The caller must know it has no connections.
func (g *Registry) Delete(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[roomID]; ok {
		delete(g.rooms, roomID)
		g.metrics.RoomClosed()
	}
}

// Connect attaches c to roomID, creating the room if needed. A room evicted
// between lookup and join is replaced by a fresh one.
func (g *Registry) Connect(ctx context.Context, roomID string, c Client) (*Room, string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		r := g.GetOrCreate(roomID)
		role, err := r.Join(ctx, c)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return r, role, nil
	}
	return nil, "", ErrRoomClosed
}

// Evict force-closes a live room: clients are disconnected with 4004 and no
// further snapshot is written. It reports whether the room was live.
func (g *Registry) Evict(roomID string) bool {
	g.mu.Lock()
	r, ok := g.rooms[roomID]
	if ok {
		delete(g.rooms, roomID)
		g.metrics.RoomClosed()
	}
	g.mu.Unlock()

	if !ok {
		return false
	}
	r.Close(network.CloseRoomDeleted, "room deleted")
	logger.Log.Infow("room evicted", "room", roomID)
	return true
}

// evictIfIdle runs when the grace period of an empty room ends.
func (g *Registry) evictIfIdle(r *Room, seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.rooms[r.ID]; !ok || cur != r {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.evictSeq || r.evictTimer == nil {
		return
	}
	r.evictTimer = nil
	if len(r.clients) > 0 || r.closed {
		return
	}
	r.closed = true
	delete(g.rooms, r.ID)
	g.metrics.RoomClosed()
	logger.Log.Infow("idle room evicted", "room", r.ID)
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Rooms returns the live rooms ordered by id.
func (g *Registry) Rooms() []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConnectionCount sums the attached clients of every live room.
func (g *Registry) ConnectionCount() int {
	n := 0
	for _, r := range g.Rooms() {
		n += r.ClientCount()
	}
	return n
}

// Shutdown closes all clients with 1001 and writes a final snapshot of every room.
func (g *Registry) Shutdown(ctx context.Context) {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for id, r := range g.rooms {
		rooms = append(rooms, r)
		delete(g.rooms, id)
		g.metrics.RoomClosed()
	}
	g.mu.Unlock()

	// 先关闭房间冻结状态，再写最后一次快照
	for _, r := range rooms {
		r.Close(websocket.CloseGoingAway, "server shutting down")
	}
	for _, r := range rooms {
		if ctx.Err() != nil {
			logger.Log.Warnw("shutdown deadline reached, skipping remaining flushes", "error", ctx.Err())
			break
		}
		r.Flush()
	}
	logger.Log.Infow("registry shut down", "rooms", len(rooms))
}
