// Package battle drives the round, timer and voting lifecycle of a battle.
//
// A Machine never locks on its own for caller-initiated operations: the room
// that owns it holds the shared lock around every call. Timer callbacks take
// that same lock and drop themselves when the timer generation moved on.
package battle

import (
	"sync"
	"time"

	"github.com/dkeye/Cypher/internal/app/vote"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog/log"
)

type Config struct {
	MaxRounds     int
	RoundDuration time.Duration
	VotingWindow  time.Duration
}

type Hooks struct {
	// Emit broadcasts to the room. Called with the room lock held.
	Emit func(core.Event)
	// Completed fires exactly once, when the battle reaches completed.
	Completed func(domain.BattleResult)
	// Viewers reports room members other than the contestants.
	Viewers func() int
}

type Machine struct {
	id          domain.BattleID
	room        domain.RoomID
	contestants [2]domain.UserID
	cfg         Config

	status domain.BattleStatus
	round  int
	votes  *vote.Aggregator

	lock     sync.Locker
	hooks    Hooks
	timer    *time.Timer
	gen      uint64
	deadline time.Time
	now      func() time.Time
}

func New(
	id domain.BattleID,
	room domain.RoomID,
	a, b domain.UserID,
	cfg Config,
	lock sync.Locker,
	hooks Hooks,
) (*Machine, error) {
	if a == "" || b == "" || a == b {
		return nil, domain.ErrSameContestant
	}
	if cfg.MaxRounds < 1 || cfg.RoundDuration <= 0 || cfg.VotingWindow <= 0 {
		return nil, domain.ErrBadRounds
	}
	if hooks.Emit == nil {
		hooks.Emit = func(core.Event) {}
	}
	if hooks.Completed == nil {
		hooks.Completed = func(domain.BattleResult) {}
	}
	if hooks.Viewers == nil {
		hooks.Viewers = func() int { return 0 }
	}
	return &Machine{
		id:          id,
		room:        room,
		contestants: [2]domain.UserID{a, b},
		cfg:         cfg,
		status:      domain.BattleWaiting,
		votes:       vote.New(a, b),
		lock:        lock,
		hooks:       hooks,
		now:         time.Now,
	}, nil
}

func (m *Machine) ID() domain.BattleID { return m.id }
func (m *Machine) Status() domain.BattleStatus { return m.status }
func (m *Machine) Round() int { return m.round }
func (m *Machine) Done() bool { return m.status == domain.BattleCompleted }

func (m *Machine) IsContestant(id domain.UserID) bool {
	return id == m.contestants[0] || id == m.contestants[1]
}

// Start moves waiting -> active and arms the first round timer.
func (m *Machine) Start() error {
	if m.status != domain.BattleWaiting {
		return domain.ErrInvalidTransition
	}
	m.round = 1
	m.status = domain.BattleActive
	m.arm(m.cfg.RoundDuration, m.roundElapsed)
	log.Info().Str("module", "battle").Str("battle", string(m.id)).Str("room", string(m.room)).Msg("battle started")
	m.hooks.Emit(core.NewBattleEvent(core.EvtBattleStarted, m.Snapshot()))
	return nil
}

// Abort jumps straight to completed from active or voting. Tallies are not finalised.
func (m *Machine) Abort(reason string) error {
	if m.status != domain.BattleActive && m.status != domain.BattleVoting {
		return domain.ErrInvalidTransition
	}
	log.Info().Str("module", "battle").Str("battle", string(m.id)).Str("reason", reason).Msg("battle aborted")
	m.finish(true, reason)
	return nil
}

// CastVote records a ballot for the current round. changed is false for an identical recast.
func (m *Machine) CastVote(voter, contestant domain.UserID) (changed bool, err error) {
	if m.status != domain.BattleVoting {
		return false, domain.ErrBattleNotVoting
	}
	changed, err = m.votes.Cast(m.round, voter, contestant)
	if err != nil || !changed {
		return changed, err
	}
	ev := core.NewBattleEvent(core.EvtBattleTally, m.Snapshot())
	ev.RoundTally = m.votes.RoundTally(m.round)
	m.hooks.Emit(ev)
	return true, nil
}

// Close stops any pending timer without completing the battle.
func (m *Machine) Close() {
	m.disarm()
}

func (m *Machine) Snapshot() core.BattleSnapshot {
	s := core.BattleSnapshot{
		BattleID:        m.id,
		RoomID:          m.room,
		Status:          m.status,
		Round:           m.round,
		MaxRounds:       m.cfg.MaxRounds,
		Contestants:     m.contestants,
		Tally:           m.votes.Tally(),
		Viewers:         m.hooks.Viewers(),
		RoundDurationMs: m.cfg.RoundDuration.Milliseconds(),
		VotingWindowMs:  m.cfg.VotingWindow.Milliseconds(),
	}
	if m.timer != nil {
		if left := m.deadline.Sub(m.now()); left > 0 {
			s.RemainingMs = left.Milliseconds()
		}
	}
	return s
}

func (m *Machine) roundElapsed() {
	if m.status != domain.BattleActive {
		return
	}
	m.status = domain.BattleVoting
	m.arm(m.cfg.VotingWindow, m.votingElapsed)
	log.Debug().Str("module", "battle").Str("battle", string(m.id)).Int("round", m.round).Msg("voting opened")
	m.hooks.Emit(core.NewBattleEvent(core.EvtBattleRoundVoting, m.Snapshot()))
}

func (m *Machine) votingElapsed() {
	if m.status != domain.BattleVoting {
		return
	}
	m.disarm()
	res := core.NewBattleEvent(core.EvtBattleRoundResult, m.Snapshot())
	res.RoundTally = m.votes.RoundTally(m.round)
	m.hooks.Emit(res)

	if m.round >= m.cfg.MaxRounds {
		m.finish(false, "")
		return
	}
	m.round++
	m.status = domain.BattleActive
	m.arm(m.cfg.RoundDuration, m.roundElapsed)
	m.hooks.Emit(core.NewBattleEvent(core.EvtBattleStarted, m.Snapshot()))
}

func (m *Machine) finish(aborted bool, reason string) {
	m.disarm()
	m.status = domain.BattleCompleted

	res := domain.BattleResult{
		BattleID:    m.id,
		RoomID:      m.room,
		Contestants: m.contestants,
		Rounds:      m.votes.Rounds(m.round),
		Tally:       m.votes.Tally(),
		Aborted:     aborted,
		Reason:      reason,
		CompletedAt: m.now().UTC(),
	}
	if !aborted {
		res.Winner, res.Tie = m.votes.Leader()
	}

	ev := core.NewBattleEvent(core.EvtBattleCompleted, m.Snapshot())
	ev.Winner, ev.Tie, ev.Aborted, ev.Reason = res.Winner, res.Tie, res.Aborted, res.Reason
	m.hooks.Emit(ev)

	log.Info().
		Str("module", "battle").
		Str("battle", string(m.id)).
		Str("winner", string(res.Winner)).
		Bool("tie", res.Tie).
		Bool("aborted", aborted).
		Msg("battle completed")
	m.hooks.Completed(res)
}

// arm replaces the pending timer. Caller holds the lock.
func (m *Machine) arm(d time.Duration, fn func()) {
	m.disarm()
	gen := m.gen
	m.deadline = m.now().Add(d)
	m.timer = time.AfterFunc(d, func() { m.fire(gen, fn) })
}

func (m *Machine) fire(gen uint64, fn func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if gen != m.gen {
		log.Debug().Str("module", "battle").Str("battle", string(m.id)).Msg("stale timer dropped")
		return
	}
	m.timer = nil
	fn()
}

func (m *Machine) disarm() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
