package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Cypher/internal/app/battle"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RoomSettings struct {
	MaxCapacity int
	Capacity    map[domain.RoomKind]int
	Battle      battle.Config
	// SinkTimeout bounds one ResultSink call.
	SinkTimeout time.Duration
}

func (s RoomSettings) capacityFor(kind domain.RoomKind, requested int) int {
	c := requested
	if c <= 0 {
		c = s.Capacity[kind]
	}
	if c <= 0 || (s.MaxCapacity > 0 && c > s.MaxCapacity) {
		c = s.MaxCapacity
	}
	if c < 1 {
		c = 1
	}
	return c
}

// JoinOptions carry the creation parameters of a join. They are ignored when
// the room already exists.
type JoinOptions struct {
	Kind     domain.RoomKind
	Capacity int
	IsHost   bool
	BeatID   string
}

func (o JoinOptions) creates() bool {
	return o.IsHost || o.Kind != "" || o.Capacity > 0
}

type RoomManager struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]*Room
	battles map[domain.BattleID]*Room

	reg      *Registry
	sink     core.ResultSink
	settings RoomSettings
}

func NewRoomManager(reg *Registry, sink core.ResultSink, settings RoomSettings) *RoomManager {
	if settings.SinkTimeout <= 0 {
		settings.SinkTimeout = 10 * time.Second
	}
	return &RoomManager{
		rooms:    make(map[domain.RoomID]*Room),
		battles:  make(map[domain.BattleID]*Room),
		reg:      reg,
		sink:     sink,
		settings: settings,
	}
}

// Join puts sid into room id, leaving its current room first. A missing room
// is created only when opts carry creation parameters. A switch that would
// be refused leaves sid where it is.
func (m *RoomManager) Join(sid core.SessionID, id domain.RoomID, opts JoinOptions) (core.RoomSnapshot, error) {
	if err := domain.ValidateRoomID(id); err != nil {
		return core.RoomSnapshot{}, err
	}
	conn, ok := m.reg.Lookup(sid)
	if !ok {
		return core.RoomSnapshot{}, domain.ErrSessionNotFound
	}
	if conn.Room != "" && conn.Room != id {
		if err := m.admits(id, opts); err != nil {
			return core.RoomSnapshot{}, err
		}
		m.Leave(sid)
	}

	for {
		r, err := m.getOrCreate(id, opts)
		if err != nil {
			return core.RoomSnapshot{}, err
		}
		snap, err := r.join(sid, conn.User)
		if err == errRoomClosed {
			continue
		}
		return snap, err
	}
}

func (m *RoomManager) getOrCreate(id domain.RoomID, opts JoinOptions) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	if !opts.creates() {
		return nil, domain.ErrRoomNotJoinable
	}
	kind := opts.Kind
	if kind == "" {
		kind = domain.KindCypher
	}
	r := newRoom(id, kind, m.settings.capacityFor(kind, opts.Capacity), opts.BeatID, m)
	m.rooms[id] = r
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("kind", string(kind)).Int("capacity", r.capacity).Msg("room created")
	return r, nil
}

// admits checks that room id would take one more member. The room can still
// fill up before the join lands; Join then reports that error instead.
func (m *RoomManager) admits(id domain.RoomID, opts JoinOptions) error {
	r, ok := m.Get(id)
	if ok {
		err := r.admits()
		if err != errRoomClosed {
			return err
		}
	}
	if !opts.creates() {
		return domain.ErrRoomNotJoinable
	}
	return nil
}

// Leave removes sid from its room. Leaving when not in a room is a no-op.
func (m *RoomManager) Leave(sid core.SessionID) {
	id, ok := m.reg.RoomOf(sid)
	if !ok {
		return
	}
	m.LeaveRoom(id, sid)
}

// LeaveRoom removes sid from room id; used once the registry no longer knows sid.
func (m *RoomManager) LeaveRoom(id domain.RoomID, sid core.SessionID) {
	if id == "" {
		return
	}
	if r, ok := m.Get(id); ok {
		r.leave(sid)
	}
}

func (m *RoomManager) Get(id domain.RoomID) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomOf resolves the room sid is currently in.
func (m *RoomManager) RoomOf(sid core.SessionID) (*Room, error) {
	id, ok := m.reg.RoomOf(sid)
	if !ok {
		return nil, domain.ErrNotInRoom
	}
	r, ok := m.Get(id)
	if !ok {
		return nil, domain.ErrNotInRoom
	}
	return r, nil
}

func (m *RoomManager) Snapshot(id domain.RoomID) (core.RoomSnapshot, error) {
	r, ok := m.Get(id)
	if !ok {
		return core.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return r.Snapshot(), nil
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *RoomManager) Battle(id domain.BattleID) (core.BattleSnapshot, error) {
	m.mu.Lock()
	r, ok := m.battles[id]
	m.mu.Unlock()
	if !ok {
		return core.BattleSnapshot{}, domain.ErrBattleNotFound
	}
	return r.battleSnapshot(id)
}

// Close stops every pending battle timer.
func (m *RoomManager) Close() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()
	for _, r := range rooms {
		r.closeBattle()
	}
}

func (m *RoomManager) newBattleID() domain.BattleID {
	return domain.BattleID(uuid.NewString())
}

// Called with the room lock held.
func (m *RoomManager) trackBattle(id domain.BattleID, r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battles[id] = r
}

func (m *RoomManager) untrackBattle(id domain.BattleID, r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.battles[id] == r {
		delete(m.battles, id)
	}
}

// Called with the room lock held.
func (m *RoomManager) remove(r *Room, battle domain.BattleID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[r.id] == r {
		delete(m.rooms, r.id)
	}
	if battle != "" && m.battles[battle] == r {
		delete(m.battles, battle)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(r.id)).Msg("room destroyed")
}

// record hands a final result to the sink without waiting for it.
func (m *RoomManager) record(res domain.BattleResult) {
	if m.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.settings.SinkTimeout)
		defer cancel()
		if err := m.sink.RecordBattle(ctx, res); err != nil {
			log.Error().Err(err).Str("module", "app.rooms").Str("battle", string(res.BattleID)).Msg("record battle result")
		}
	}()
}
