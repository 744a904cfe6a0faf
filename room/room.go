// room/room.go
package room

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wfunc/tabletop/broadcast"
	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/models"
	"github.com/wfunc/tabletop/monitor"
	"github.com/wfunc/tabletop/network"
	"github.com/wfunc/tabletop/persistence"
	"github.com/wfunc/tabletop/timer"
)

var ErrRoomClosed = errors.New("room closed")

type member struct {
	client Client
	userID string
	role   string
}

func (m *member) canModify(t *models.Token) bool {
	return m.role == RoleGM || t.OwnerUserID == m.userID
}

// Room 一个实时桌面房间。所有状态变更都在 mu 内完成，一次一个事件
type Room struct {
	ID  string
	reg *Registry

	mu       sync.Mutex
	name     string
	gmUserID string
	config   models.MapConfig
	tokens   []*models.Token
	fog      fogSet
	clients  map[string]*member // userID -> member
	limiters map[string]*rate.Limiter
	hydrated bool
	closed   bool

	lastSnapshotAt  time.Time
	pendingSnapshot timer.Handle
	snapshotSeq     uint64
	evictTimer      timer.Handle
	evictSeq        uint64

	hydrateMu sync.Mutex
	persistMu sync.Mutex
}

func newRoom(id string, reg *Registry) *Room {
	return &Room{
		ID:       id,
		reg:      reg,
		config:   reg.opts.Defaults,
		fog:      newFogSet(nil),
		clients:  make(map[string]*member),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Join attaches c to the room, sends it STATE_SYNC and announces it to the
// others. It returns the role resolved for the connection.
func (r *Room) Join(ctx context.Context, c Client) (string, error) {
	r.hydrate(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRoomClosed
	}
	r.cancelEvictionLocked()

	userID := c.UserID()
	role := ResolveRole(userID, r.gmUserID)
	old, replaced := r.clients[userID]
	r.clients[userID] = &member{client: c, userID: userID, role: role}

	if replaced && old.client != c {
		logger.Log.Infow("connection replaced", "room", r.ID, "user", userID)
		go old.client.CloseWith(network.CloseReplaced, "replaced by a newer connection")
	}

	r.sendLocked(c, network.NewStateSync(r.viewLocked(), role, userID))
	if !replaced {
		r.broadcastLocked(network.NewUserJoined(userID), c)
	}
	return role, nil
}

// Leave detaches c. A connection that was already replaced or closed is ignored.
func (r *Room) Leave(c Client) {
	r.mu.Lock()
	m, ok := r.clients[c.UserID()]
	if !ok || m.client != c {
		r.mu.Unlock()
		return
	}
	delete(r.clients, m.userID)
	delete(r.limiters, m.userID)
	r.broadcastLocked(network.NewUserLeft(m.userID), nil)

	empty := len(r.clients) == 0 && !r.closed
	if empty {
		r.scheduleEvictionLocked()
	}
	r.mu.Unlock()

	if empty {
		r.persist()
	}
}

// Handle applies one inbound event from c. Events that fail their
// precondition are dropped without a reply.
func (r *Room) Handle(c Client, ev network.Event) {
	r.mu.Lock()
	m, ok := r.clients[c.UserID()]
	if !ok || m.client != c || r.closed {
		r.mu.Unlock()
		r.reg.metrics.EventDropped(monitor.DropRejected)
		return
	}

	tr, ok := transitions[ev.EventType()]
	if !ok {
		r.mu.Unlock()
		r.reg.metrics.EventDropped(monitor.DropUnknown)
		return
	}

	result := tr(r, m, ev)
	if result == persistDebounced {
		r.scheduleSnapshotLocked()
	}
	r.mu.Unlock()

	switch result {
	case dropRejected:
		logger.Log.Debugw("event rejected", "room", r.ID, "user", m.userID, "type", ev.EventType())
		r.reg.metrics.EventDropped(monitor.DropRejected)
	case dropRateLimited:
		r.reg.metrics.EventDropped(monitor.DropRateLimited)
	case persistNow:
		r.persist()
	}
}

// Close disconnects every client with code, stops the room's timers and
// rejects further joins.
func (r *Room) Close(code int, reason string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.stopTimersLocked()
	clients := make([]Client, 0, len(r.clients))
	for _, m := range r.clients {
		clients = append(clients, m.client)
	}
	r.clients = make(map[string]*member)
	r.limiters = make(map[string]*rate.Limiter)
	r.mu.Unlock()

	for _, c := range clients {
		c.CloseWith(code, reason)
	}
}

// Flush saves the current state now.
func (r *Room) Flush() {
	r.persist()
}

// Snapshot returns a deep copy of the persistable state.
func (r *Room) Snapshot() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// ConnectedUsers returns the attached user ids, sorted.
func (r *Room) ConnectedUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedUsersLocked()
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) LastSnapshotAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSnapshotAt
}

// hydrate loads the saved room once, before the first join. A storage
// failure leaves the room empty and is retried on the next join; the saved
// state is only applied while the room still has no tokens.
func (r *Room) hydrate(ctx context.Context) {
	r.hydrateMu.Lock()
	defer r.hydrateMu.Unlock()

	r.mu.Lock()
	need := !r.hydrated && !r.closed
	r.mu.Unlock()
	if !need {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.reg.opts.SaveTimeout)
	defer cancel()
	rec, err := r.reg.store.Load(ctx, r.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case err == nil:
		if len(r.tokens) > 0 {
			// 加载失败期间已有改动，只取房间身份
			r.name = rec.Name
			r.gmUserID = rec.GMUserID
			r.hydrated = true
			return
		}
		r.applyRecordLocked(rec)
		r.hydrated = true
		r.reg.metrics.ObserveSnapshot(monitor.SnapshotHydrated, 0)
		logger.Log.Infow("room hydrated", "room", r.ID, "tokens", len(r.tokens), "revealed", r.fog.len())
	case errors.Is(err, persistence.ErrRecordNotFound):
		r.hydrated = true
		logger.Log.Debugw("room not persisted, starting empty", "room", r.ID)
	default:
		logger.Log.Warnw("load room failed, starting empty", "room", r.ID, "error", err)
	}
}

func (r *Room) applyRecordLocked(rec *models.RoomRecord) {
	r.name = rec.Name
	r.gmUserID = rec.GMUserID
	if rec.State.Config != nil {
		r.config = *rec.State.Config
	}
	r.tokens = r.tokens[:0]
	for _, t := range rec.State.Tokens {
		if t != nil {
			r.tokens = append(r.tokens, t.Clone())
		}
	}
	r.fog = newFogSet(rec.State.FogState.RevealedCells)
	r.lastSnapshotAt = rec.UpdatedAt
}

// persist saves the state as of now. Saves of one room never overlap.
// Nothing is written before the room has been loaded, so a load failure can
// not overwrite the saved row with defaults.
func (r *Room) persist() {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	hydrated := r.hydrated
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if !hydrated {
		logger.Log.Debugw("snapshot skipped, room not loaded", "room", r.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.reg.opts.SaveTimeout)
	defer cancel()

	start := time.Now()
	err := r.reg.store.Save(ctx, r.ID, snap)
	switch {
	case err == nil:
		r.mu.Lock()
		r.lastSnapshotAt = r.reg.clock.Now()
		r.mu.Unlock()
		r.reg.metrics.ObserveSnapshot(monitor.SnapshotOK, time.Since(start))
	case errors.Is(err, persistence.ErrRecordNotFound):
		r.reg.metrics.ObserveSnapshot(monitor.SnapshotMissing, 0)
		logger.Log.Debugw("snapshot skipped, room not persisted", "room", r.ID)
	default:
		r.reg.metrics.ObserveSnapshot(monitor.SnapshotFailed, 0)
		logger.Log.Warnw("save snapshot failed", "room", r.ID, "error", err)
	}
}

// scheduleSnapshotLocked restarts the debounce window.
func (r *Room) scheduleSnapshotLocked() {
	if r.pendingSnapshot != nil {
		r.pendingSnapshot.Stop()
	}
	r.snapshotSeq++
	seq := r.snapshotSeq
	r.pendingSnapshot = r.reg.clock.AfterFunc(r.reg.opts.SnapshotDelay, func() {
		r.snapshotFired(seq)
	})
}

func (r *Room) snapshotFired(seq uint64) {
	r.mu.Lock()
	if seq != r.snapshotSeq || r.pendingSnapshot == nil {
		// 已被重新调度或房间已关闭
		r.mu.Unlock()
		return
	}
	r.pendingSnapshot = nil
	r.mu.Unlock()

	r.persist()
}

func (r *Room) scheduleEvictionLocked() {
	r.cancelEvictionLocked()
	r.evictSeq++
	seq := r.evictSeq
	r.evictTimer = r.reg.clock.AfterFunc(r.reg.opts.EvictionGrace, func() {
		r.reg.evictIfIdle(r, seq)
	})
}

func (r *Room) cancelEvictionLocked() {
	if r.evictTimer != nil {
		r.evictTimer.Stop()
		r.evictTimer = nil
	}
}

func (r *Room) stopTimersLocked() {
	r.cancelEvictionLocked()
	if r.pendingSnapshot != nil {
		r.pendingSnapshot.Stop()
		r.pendingSnapshot = nil
	}
}

func (r *Room) allowMoveLocked(userID string) bool {
	interval := r.reg.opts.MoveInterval
	if interval <= 0 {
		return true
	}
	lim, ok := r.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		r.limiters[userID] = lim
	}
	return lim.AllowN(r.reg.clock.Now(), 1)
}

func (r *Room) findTokenLocked(id string) (int, *models.Token) {
	for i, t := range r.tokens {
		if t.ID == id {
			return i, t
		}
	}
	return -1, nil
}

func (r *Room) snapshotLocked() models.Snapshot {
	cfg := r.config
	return models.Snapshot{
		Config:   &cfg,
		Tokens:   r.cloneTokensLocked(),
		FogState: models.FogState{RevealedCells: r.fog.list()},
	}
}

func (r *Room) cloneTokensLocked() []*models.Token {
	out := make([]*models.Token, len(r.tokens))
	for i, t := range r.tokens {
		out[i] = t.Clone()
	}
	return out
}

func (r *Room) connectedUsersLocked() []string {
	users := make([]string, 0, len(r.clients))
	for id := range r.clients {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (r *Room) viewLocked() network.RoomView {
	return network.RoomView{
		ID:             r.ID,
		Name:           r.name,
		GMUserID:       r.gmUserID,
		Config:         r.config,
		Tokens:         r.cloneTokensLocked(),
		FogState:       models.FogState{RevealedCells: r.fog.list()},
		ConnectedUsers: r.connectedUsersLocked(),
	}
}

func (r *Room) recipientsLocked() []broadcast.Recipient {
	out := make([]broadcast.Recipient, 0, len(r.clients))
	for _, m := range r.clients {
		out = append(out, m.client)
	}
	return out
}

// broadcastLocked sends msg to every member except exclude, which may be nil.
func (r *Room) broadcastLocked(msg any, exclude Client) {
	data, err := network.Encode(msg)
	if err != nil {
		logger.Log.Errorw("encode message failed", "room", r.ID, "error", err)
		return
	}
	var ex broadcast.Recipient
	if exclude != nil {
		ex = exclude
	}
	r.reg.fanout.Broadcast(r.recipientsLocked(), data, ex)
}

func (r *Room) sendLocked(c Client, msg any) {
	data, err := network.Encode(msg)
	if err != nil {
		logger.Log.Errorw("encode message failed", "room", r.ID, "error", err)
		return
	}
	r.reg.fanout.SendTo(c, data)
}
