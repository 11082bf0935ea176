package app

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Cypher/internal/app/battle"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog/log"
)

var errRoomClosed = errors.New("room closed")

type member struct {
	sid core.SessionID
	p   domain.Participant
}

// Room is a single-writer unit: mu guards the room, its battle and the
// battle's ballots, timer callbacks included. Events are published while mu
// is held so every member sees them in generation order.
type Room struct {
	mu sync.Mutex

	id       domain.RoomID
	kind     domain.RoomKind
	capacity int
	beatID   string

	members []*member
	owner   domain.UserID
	hands   []core.SessionID

	recording bool
	recStart  time.Time
	recorded  time.Duration

	battle *battle.Machine
	closed bool

	mgr *RoomManager
	pub core.Publisher
	now func() time.Time
}

func newRoom(id domain.RoomID, kind domain.RoomKind, capacity int, beatID string, mgr *RoomManager) *Room {
	return &Room{
		id:       id,
		kind:     kind,
		capacity: capacity,
		beatID:   beatID,
		mgr:      mgr,
		pub:      mgr.reg,
		now:      time.Now,
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) join(sid core.SessionID, user domain.User) (core.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return core.RoomSnapshot{}, errRoomClosed
	}
	if r.find(sid) != nil {
		return r.snapshotLocked(), nil
	}
	if len(r.members) >= r.capacity {
		return core.RoomSnapshot{}, domain.ErrRoomFull
	}

	m := &member{sid: sid, p: domain.Participant{User: user, JoinedAt: r.now()}}
	r.members = append(r.members, m)
	if !r.mgr.reg.SetRoom(sid, r.id) {
		// disconnected meanwhile; the disconnect hook already ran against the old room
		r.removeLocked(sid)
		r.maybeDestroyLocked()
		return core.RoomSnapshot{}, domain.ErrSessionNotFound
	}
	if r.owner == "" || r.findUser(r.owner) == nil {
		r.owner = user.ID
	}

	log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("members", len(r.members)).Msg("member joined")
	r.broadcastExcept(sid, core.NewMemberJoined(r.id, toDTO(m, 0), len(r.members)))
	return r.snapshotLocked(), nil
}

func (r *Room) admits() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errRoomClosed
	}
	if len(r.members) >= r.capacity {
		return domain.ErrRoomFull
	}
	return nil
}

func (r *Room) leave(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.removeLocked(sid)
	if m == nil {
		return
	}
	r.mgr.reg.ClearRoom(sid, r.id)
	log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("members", len(r.members)).Msg("member left")
	r.broadcast(core.NewMemberLeft(r.id, toDTO(m, 0), len(r.members)))

	if r.owner == m.p.User.ID {
		if len(r.members) == 0 {
			r.owner = ""
		} else {
			r.owner = r.members[0].p.User.ID
			r.broadcast(core.NewOwnerChanged(r.id, r.owner))
		}
	}
	r.maybeDestroyLocked()
}

func (r *Room) removeLocked(sid core.SessionID) *member {
	for i, m := range r.members {
		if m.sid == sid {
			r.members = append(r.members[:i], r.members[i+1:]...)
			r.dropHand(sid)
			return m
		}
	}
	return nil
}

func (r *Room) maybeDestroyLocked() {
	if len(r.members) > 0 || r.closed {
		return
	}
	// Only a battle in flight keeps an empty room alive. A waiting one has
	// nobody left to start it.
	if r.battle != nil && (r.battle.Status() == domain.BattleActive || r.battle.Status() == domain.BattleVoting) {
		return
	}
	r.closed = true
	var bid domain.BattleID
	if r.battle != nil {
		bid = r.battle.ID()
		if r.battle.Status() == domain.BattleWaiting {
			r.battle.Close()
			log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("battle", string(bid)).Msg("waiting battle discarded")
		}
	}
	if r.recording {
		r.recorded += r.now().Sub(r.recStart)
		r.recording = false
	}
	r.mgr.remove(r, bid)
}

func (r *Room) SetMute(sid core.SessionID, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(sid)
	if m == nil {
		return domain.ErrNotInRoom
	}
	if m.p.Muted == muted {
		return nil
	}
	m.p.Muted = muted
	r.broadcast(core.NewMuteChanged(r.id, m.p.User.ID, muted))
	return nil
}

func (r *Room) SetMediaState(sid core.SessionID, audio, video, screen bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(sid)
	if m == nil {
		return domain.ErrNotInRoom
	}
	m.p.Muted = !audio
	m.p.VideoEnabled = video
	m.p.ScreenSharing = screen
	r.broadcast(core.NewMediaState(r.id, m.p.User.ID, audio, video, screen))
	return nil
}

// SetAudioLevel stores the advisory level and broadcasts only speaking flips.
func (r *Room) SetAudioLevel(sid core.SessionID, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(sid)
	if m == nil {
		return domain.ErrNotInRoom
	}
	level = domain.ClampAudioLevel(level)
	m.p.AudioLevel = level
	speaking := level >= domain.SpeakingThreshold
	if speaking == m.p.Speaking {
		return nil
	}
	m.p.Speaking = speaking
	r.broadcast(core.NewSpeakingChanged(r.id, m.p.User.ID, speaking, level))
	return nil
}

// RaiseHand queues sid and returns its 1-based position. Raising twice keeps the position.
func (r *Room) RaiseHand(sid core.SessionID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(sid)
	if m == nil {
		return 0, domain.ErrNotInRoom
	}
	if pos := r.handPosition(sid); pos > 0 {
		return pos, nil
	}
	r.hands = append(r.hands, sid)
	pos := len(r.hands)
	r.broadcast(core.NewHandRaised(r.id, m.p.User.ID, pos))
	return pos, nil
}

func (r *Room) LowerHand(sid core.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(sid)
	if m == nil {
		return domain.ErrNotInRoom
	}
	if !r.dropHand(sid) {
		return nil
	}
	r.broadcast(core.NewHandLowered(r.id, m.p.User.ID))
	return nil
}

func (r *Room) handPosition(sid core.SessionID) int {
	for i, h := range r.hands {
		if h == sid {
			return i + 1
		}
	}
	return 0
}

func (r *Room) dropHand(sid core.SessionID) bool {
	for i, h := range r.hands {
		if h == sid {
			r.hands = append(r.hands[:i], r.hands[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) StartRecording(sid core.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(sid); err != nil {
		return err
	}
	if r.recording {
		return domain.ErrAlreadyRecording
	}
	r.recording = true
	r.recStart = r.now()
	r.broadcast(core.NewRecording(r.id, true, r.recorded.Seconds()))
	return nil
}

func (r *Room) StopRecording(sid core.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(sid); err != nil {
		return err
	}
	if !r.recording {
		return domain.ErrNotRecording
	}
	r.recording = false
	r.recorded += r.now().Sub(r.recStart)
	r.broadcast(core.NewRecording(r.id, false, r.recorded.Seconds()))
	return nil
}

func (r *Room) TransferOwner(sid core.SessionID, to domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(sid); err != nil {
		return err
	}
	if r.findUser(to) == nil {
		return domain.ErrUserNotFound
	}
	if r.owner == to {
		return nil
	}
	r.owner = to
	r.broadcast(core.NewOwnerChanged(r.id, to))
	return nil
}

// UpdateLayer relays an opaque collaboration layer to the other members.
func (r *Room) UpdateLayer(sid core.SessionID, collaborationID string, data json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(sid)
	if m == nil {
		return domain.ErrNotInRoom
	}
	r.broadcastExcept(sid, core.NewLayerUpdated(r.id, m.p.User.ID, collaborationID, data))
	return nil
}

type BattleParams struct {
	ContestantA   domain.UserID
	ContestantB   domain.UserID
	MaxRounds     int
	RoundDuration time.Duration
}

// CreateBattle layers a new battle on the room. Owner or moderator only.
func (r *Room) CreateBattle(sid core.SessionID, p BattleParams) (core.BattleSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwnerOrModerator(sid); err != nil {
		return core.BattleSnapshot{}, err
	}
	if r.battle != nil && !r.battle.Done() {
		return core.BattleSnapshot{}, domain.ErrBattleInProgress
	}
	if r.findUser(p.ContestantA) == nil || r.findUser(p.ContestantB) == nil {
		return core.BattleSnapshot{}, domain.ErrContestantNotInRoom
	}

	cfg := r.mgr.settings.Battle
	if p.MaxRounds > 0 {
		cfg.MaxRounds = p.MaxRounds
	}
	if p.RoundDuration > 0 {
		cfg.RoundDuration = p.RoundDuration
	}
	id := r.mgr.newBattleID()
	m, err := battle.New(id, r.id, p.ContestantA, p.ContestantB, cfg, &r.mu, battle.Hooks{
		Emit:      r.broadcast,
		Completed: r.battleCompleted,
		Viewers:   r.viewersLocked,
	})
	if err != nil {
		return core.BattleSnapshot{}, err
	}
	if r.battle != nil {
		r.mgr.untrackBattle(r.battle.ID(), r)
	}
	r.battle = m
	r.mgr.trackBattle(id, r)

	snap := m.Snapshot()
	log.Info().Str("module", "app.room").Str("room", string(r.id)).Str("battle", string(id)).Msg("battle created")
	r.broadcast(core.NewBattleEvent(core.EvtBattleCreated, snap))
	return snap, nil
}

func (r *Room) StartBattle(sid core.SessionID, id domain.BattleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.battleLocked(id)
	if err != nil {
		return err
	}
	if err := r.requireOwner(sid); err != nil {
		return err
	}
	return b.Start()
}

func (r *Room) AbortBattle(sid core.SessionID, id domain.BattleID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.battleLocked(id)
	if err != nil {
		return err
	}
	if err := r.requireOwnerOrModerator(sid); err != nil {
		return err
	}
	return b.Abort(reason)
}

// CastVote returns the round the vote counted for and whether it changed anything.
func (r *Room) CastVote(sid core.SessionID, id domain.BattleID, contestant domain.UserID) (round int, changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(sid)
	if m == nil {
		return 0, false, domain.ErrNotInRoom
	}
	b, err := r.battleLocked(id)
	if err != nil {
		return 0, false, err
	}
	changed, err = b.CastVote(m.p.User.ID, contestant)
	return b.Round(), changed, err
}

func (r *Room) battleLocked(id domain.BattleID) (*battle.Machine, error) {
	if r.battle == nil || r.battle.ID() != id {
		return nil, domain.ErrBattleNotFound
	}
	return r.battle, nil
}

func (r *Room) battleSnapshot(id domain.BattleID) (core.BattleSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.battleLocked(id)
	if err != nil {
		return core.BattleSnapshot{}, err
	}
	return b.Snapshot(), nil
}

// battleCompleted runs under the room lock from the battle machine.
func (r *Room) battleCompleted(res domain.BattleResult) {
	r.mgr.record(res)
	r.maybeDestroyLocked()
}

func (r *Room) closeBattle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.battle != nil {
		r.battle.Close()
	}
}

func (r *Room) viewersLocked() int {
	if r.battle == nil {
		return len(r.members)
	}
	n := 0
	for _, m := range r.members {
		if !r.battle.IsContestant(m.p.User.ID) {
			n++
		}
	}
	return n
}

func (r *Room) requireOwner(sid core.SessionID) error {
	m := r.find(sid)
	if m == nil {
		return domain.ErrNotInRoom
	}
	if m.p.User.ID != r.owner {
		return domain.ErrNotOwner
	}
	return nil
}

func (r *Room) requireOwnerOrModerator(sid core.SessionID) error {
	m := r.find(sid)
	if m == nil {
		return domain.ErrNotInRoom
	}
	if m.p.User.ID != r.owner && !m.p.User.Moderator {
		return domain.ErrNotOwner
	}
	return nil
}

func (r *Room) find(sid core.SessionID) *member {
	for _, m := range r.members {
		if m.sid == sid {
			return m
		}
	}
	return nil
}

func (r *Room) findUser(id domain.UserID) *member {
	for _, m := range r.members {
		if m.p.User.ID == id {
			return m
		}
	}
	return nil
}

func (r *Room) sids() []core.SessionID {
	out := make([]core.SessionID, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.sid)
	}
	return out
}

func (r *Room) broadcast(ev core.Event) {
	r.pub.Broadcast(r.sids(), ev)
}

func (r *Room) broadcastExcept(sid core.SessionID, ev core.Event) {
	out := make([]core.SessionID, 0, len(r.members))
	for _, m := range r.members {
		if m.sid != sid {
			out = append(out, m.sid)
		}
	}
	r.pub.Broadcast(out, ev)
}

func (r *Room) Snapshot() core.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() core.RoomSnapshot {
	s := core.RoomSnapshot{
		RoomID:   r.id,
		Kind:     r.kind,
		Capacity: r.capacity,
		Owner:    r.owner,
		Members:  make([]core.MemberDTO, 0, len(r.members)),
		Hands:    make([]domain.UserID, 0, len(r.hands)),
		BeatID:   r.beatID,

		Recording:       r.recording,
		RecordedSeconds: r.recorded.Seconds(),
	}
	if r.recording {
		s.RecordedSeconds = (r.recorded + r.now().Sub(r.recStart)).Seconds()
	}
	for _, m := range r.members {
		s.Members = append(s.Members, toDTO(m, r.handPosition(m.sid)))
	}
	for _, h := range r.hands {
		if m := r.find(h); m != nil {
			s.Hands = append(s.Hands, m.p.User.ID)
		}
	}
	if r.battle != nil {
		b := r.battle.Snapshot()
		s.Battle = &b
	}
	return s
}

func (r *Room) Info() core.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return core.RoomInfo{
		ID:          r.id,
		Kind:        r.kind,
		MemberCount: len(r.members),
		Capacity:    r.capacity,
		Battle:      r.battle != nil && !r.battle.Done(),
	}
}

func toDTO(m *member, hand int) core.MemberDTO {
	return core.MemberDTO{
		ID:            m.p.User.ID,
		Username:      m.p.User.Username,
		Muted:         m.p.Muted,
		VideoEnabled:  m.p.VideoEnabled,
		ScreenSharing: m.p.ScreenSharing,
		Speaking:      m.p.Speaking,
		AudioLevel:    m.p.AudioLevel,
		HandPosition:  hand,
	}
}
