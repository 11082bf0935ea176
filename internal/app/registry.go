package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Conn     core.SignalConnection
	User     domain.User
	Room     domain.RoomID
	LastSeen time.Time
}

// Connection is a read-only snapshot of a registered connection.
type Connection struct {
	SID      core.SessionID
	User     domain.User
	Room     domain.RoomID
	LastSeen time.Time
}

// Registry owns every live connection. It is the process-wide Publisher.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	byUser   map[domain.UserID]core.SessionID

	hooksMu sync.RWMutex
	hooks   []func(Connection)

	policy SlowConsumerPolicy
	now    func() time.Time
}

var _ core.Publisher = (*Registry)(nil)

func NewRegistry(policy SlowConsumerPolicy) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		byUser:   make(map[domain.UserID]core.SessionID),
		policy:   policy,
		now:      time.Now,
	}
}

// OnDisconnect subscribes fn to every unregistration. Hooks run outside the registry lock.
func (r *Registry) OnDisconnect(fn func(Connection)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Register tracks conn under a fresh session id. A user has at most one live
// connection: an older one is told so, closed, and disconnected.
func (r *Registry) Register(conn core.SignalConnection, user domain.User) core.SessionID {
	sid := core.SessionID(uuid.NewString())

	r.mu.Lock()
	var (
		evicted *Connection
		oldConn core.SignalConnection
	)
	if oldSID, ok := r.byUser[user.ID]; ok {
		if old, ok := r.sessions[oldSID]; ok {
			c := snapshot(oldSID, old)
			evicted, oldConn = &c, old.Conn
			delete(r.sessions, oldSID)
		}
	}
	r.sessions[sid] = &sessionEntry{Conn: conn, User: user, LastSeen: r.now()}
	r.byUser[user.ID] = sid
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("registered connection")

	if evicted != nil {
		log.Warn().
			Str("module", "app.registry").
			Str("sid", string(evicted.SID)).
			Str("user", string(user.ID)).
			Msg("identity connected elsewhere, evicting old connection")
		if f, err := encode(core.NewError("", domain.ErrDuplicateIdentity)); err == nil {
			_ = oldConn.TrySend(f)
		}
		oldConn.Close()
		r.fire(*evicted)
	}
	return sid
}

// Unregister is idempotent; only the first call for a sid fires the hooks.
func (r *Registry) Unregister(sid core.SessionID) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sid)
	if r.byUser[e.User.ID] == sid {
		delete(r.byUser, e.User.ID)
	}
	c := snapshot(sid, e)
	r.mu.Unlock()

	e.Conn.Close()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(c.Room)).Msg("unregistered connection")
	r.fire(c)
}

func (r *Registry) fire(c Connection) {
	r.hooksMu.RLock()
	hooks := append([]func(Connection){}, r.hooks...)
	r.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(c)
	}
}

func (r *Registry) Lookup(sid core.SessionID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return Connection{}, false
	}
	return snapshot(sid, e), true
}

func (r *Registry) SessionOfUser(uid domain.UserID) (core.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[uid]
	return sid, ok
}

// Touch refreshes the liveness timestamp.
func (r *Registry) Touch(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.LastSeen = r.now()
	}
}

// Rename changes the display name carried by sid. Rooms keep the name the
// member joined with.
func (r *Registry) Rename(sid core.SessionID, name string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.User{}, domain.ErrSessionNotFound
	}
	if err := e.User.SetUsername(name); err != nil {
		return domain.User{}, err
	}
	return e.User, nil
}

// SetRoom binds sid to room. It reports false when sid is no longer registered.
func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Room = room
	return true
}

// ClearRoom unbinds sid if it is still bound to room.
func (r *Registry) ClearRoom(sid core.SessionID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok && e.Room == room {
		e.Room = ""
	}
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Send delivers ev to one connection. Unknown or closed connections are ignored.
func (r *Registry) Send(sid core.SessionID, ev core.Event) {
	f, err := encode(ev)
	if err != nil {
		return
	}
	r.deliver(sid, f)
}

// Broadcast encodes ev once and delivers it to every sid.
func (r *Registry) Broadcast(sids []core.SessionID, ev core.Event) {
	if len(sids) == 0 {
		return
	}
	f, err := encode(ev)
	if err != nil {
		return
	}
	for _, sid := range sids {
		r.deliver(sid, f)
	}
}

func (r *Registry) deliver(sid core.SessionID, f core.Frame) {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return
	}
	err := e.Conn.TrySend(f)
	if !errors.Is(err, core.ErrBackpressure) {
		return
	}
	switch r.policy {
	case DropOldest:
		if ev, ok := e.Conn.(core.Evictor); ok && ev.EvictOldest() {
			if err := e.Conn.TrySend(f); err == nil {
				log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("slow consumer, dropped oldest frame")
				return
			}
		}
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("slow consumer, frame dropped")
	case Disconnect:
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("slow consumer, disconnecting")
		// Callers may hold a room lock that the disconnect hooks need.
		go r.Unregister(sid)
	}
}

// Reap unregisters connections idle for longer than idle and returns their ids.
func (r *Registry) Reap(idle time.Duration) []core.SessionID {
	cutoff := r.now().Add(-idle)
	r.mu.RLock()
	var stale []core.SessionID
	for sid, e := range r.sessions {
		if e.LastSeen.Before(cutoff) {
			stale = append(stale, sid)
		}
	}
	r.mu.RUnlock()
	for _, sid := range stale {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("idle connection reaped")
		r.Unregister(sid)
	}
	return stale
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Reap(idle)
		}
	}
}

func snapshot(sid core.SessionID, e *sessionEntry) Connection {
	return Connection{SID: sid, User: e.User, Room: e.Room, LastSeen: e.LastSeen}
}

func encode(ev core.Event) (core.Frame, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("type", ev.EventType()).Msg("encode event")
		return nil, err
	}
	return b, nil
}
