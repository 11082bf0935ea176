package battle

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	x domain.UserID = "x"
	y domain.UserID = "y"
)

type harness struct {
	mu      sync.Mutex
	m       *Machine
	events  chan core.BattleEvent
	results chan domain.BattleResult
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		events:  make(chan core.BattleEvent, 256),
		results: make(chan domain.BattleResult, 4),
	}
	m, err := New("b1", "r1", x, y, cfg, &h.mu, Hooks{
		Emit:      func(ev core.Event) { h.events <- ev.(core.BattleEvent) },
		Completed: func(res domain.BattleResult) { h.results <- res },
	})
	require.NoError(t, err)
	h.m = m
	t.Cleanup(func() {
		h.mu.Lock()
		h.m.Close()
		h.mu.Unlock()
	})
	return h
}

func (h *harness) do(fn func(m *Machine) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.m)
}

func (h *harness) vote(t *testing.T, voter, pick domain.UserID) {
	t.Helper()
	err := h.do(func(m *Machine) error {
		_, err := m.CastVote(voter, pick)
		return err
	})
	require.NoError(t, err)
}

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan core.BattleEvent, within time.Duration) core.BattleEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for battle event")
		return core.BattleEvent{}
	}
}

// expect skips events until one of type want arrives.
func expect(t *testing.T, ch <-chan core.BattleEvent, want string, within time.Duration) core.BattleEvent {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		ev := recvEvent(t, ch, time.Until(deadline))
		if ev.Type == want {
			return ev
		}
	}
}

func recvNoEvent(t *testing.T, ch <-chan core.BattleEvent, within time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("expected no event within %v, got %s (status %s)", within, ev.Type, ev.Status)
	case <-time.After(within):
	}
}

func TestNew_Validates(t *testing.T) {
	cfg := Config{MaxRounds: 1, RoundDuration: time.Second, VotingWindow: time.Second}
	var mu sync.Mutex

	_, err := New("b", "r", x, x, cfg, &mu, Hooks{})
	assert.ErrorIs(t, err, domain.ErrSameContestant)

	_, err = New("b", "r", x, y, Config{MaxRounds: 0, RoundDuration: time.Second, VotingWindow: time.Second}, &mu, Hooks{})
	assert.ErrorIs(t, err, domain.ErrBadRounds)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// three users vote X,X,Y in a single round battle; X wins.
func TestSingleRound_WinnerDecided(t *testing.T) {
	h := newHarness(t, Config{MaxRounds: 1, RoundDuration: 20 * time.Millisecond, VotingWindow: 150 * time.Millisecond})

	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))
	started := expect(t, h.events, core.EvtBattleStarted, 100*time.Millisecond)
	assert.Equal(t, domain.BattleActive, started.Status)
	assert.Equal(t, 1, started.Round)

	expect(t, h.events, core.EvtBattleRoundVoting, 500*time.Millisecond)
	h.vote(t, "u1", x)
	h.vote(t, "u2", x)
	h.vote(t, "u3", y)

	res := expect(t, h.events, core.EvtBattleRoundResult, time.Second)
	assert.Equal(t, domain.Tally{x: 2, y: 1}, res.RoundTally)

	done := expect(t, h.events, core.EvtBattleCompleted, 100*time.Millisecond)
	assert.Equal(t, x, done.Winner)
	assert.False(t, done.Tie)
	assert.False(t, done.Aborted)
	assert.Equal(t, domain.BattleCompleted, done.Status)

	final := <-h.results
	assert.Equal(t, x, final.Winner)
	assert.Equal(t, 3, final.Tally.Sum())
	require.Len(t, final.Rounds, 1)
	assert.Len(t, final.Rounds[0].Votes, 3)
}

func TestRecastDoesNotDoubleCount(t *testing.T) {
	h := newHarness(t, Config{MaxRounds: 1, RoundDuration: 10 * time.Millisecond, VotingWindow: 150 * time.Millisecond})
	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))
	expect(t, h.events, core.EvtBattleRoundVoting, 500*time.Millisecond)

	h.vote(t, "u1", x)
	h.vote(t, "u1", y)

	res := expect(t, h.events, core.EvtBattleRoundResult, time.Second)
	assert.Equal(t, domain.Tally{x: 0, y: 1}, res.RoundTally)
}

func TestAbortDuringActive(t *testing.T) {
	h := newHarness(t, Config{MaxRounds: 3, RoundDuration: time.Minute, VotingWindow: time.Minute})
	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))
	expect(t, h.events, core.EvtBattleStarted, 100*time.Millisecond)

	require.NoError(t, h.do(func(m *Machine) error { return m.Abort("technical issue") }))
	done := recvEvent(t, h.events, 100*time.Millisecond)
	assert.Equal(t, core.EvtBattleCompleted, done.Type)
	assert.Equal(t, "technical issue", done.Reason)
	assert.True(t, done.Aborted)
	assert.Empty(t, done.Winner)
	assert.False(t, done.Tie)

	final := <-h.results
	assert.True(t, final.Aborted)
	assert.Empty(t, final.Winner)
}

func TestAbortDuringVoting_StaleTimerNeverFires(t *testing.T) {
	window := 80 * time.Millisecond
	h := newHarness(t, Config{MaxRounds: 2, RoundDuration: 10 * time.Millisecond, VotingWindow: window})
	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))
	expect(t, h.events, core.EvtBattleRoundVoting, 500*time.Millisecond)

	var staleGen uint64
	require.NoError(t, h.do(func(m *Machine) error {
		staleGen = m.gen
		return m.Abort("stopped")
	}))
	expect(t, h.events, core.EvtBattleCompleted, 100*time.Millisecond)

	// let the original voting deadline pass
	recvNoEvent(t, h.events, 2*window)

	// replay the old timer callback directly
	h.m.fire(staleGen, h.m.votingElapsed)
	recvNoEvent(t, h.events, 20*time.Millisecond)

	_ = h.do(func(m *Machine) error {
		assert.Equal(t, domain.BattleCompleted, m.Status())
		return nil
	})
	assert.Len(t, h.results, 1)
}

func TestTransitionsRejected(t *testing.T) {
	h := newHarness(t, Config{MaxRounds: 1, RoundDuration: time.Minute, VotingWindow: time.Minute})

	err := h.do(func(m *Machine) error { return m.Abort("early") })
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	err = h.do(func(m *Machine) error {
		_, err := m.CastVote("u1", x)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrBattleNotVoting)

	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))
	err = h.do(func(m *Machine) error { return m.Start() })
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// active, not voting yet
	err = h.do(func(m *Machine) error {
		_, err := m.CastVote("u1", x)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrBattleNotVoting)
}

func TestInvalidContestantRejected(t *testing.T) {
	h := newHarness(t, Config{MaxRounds: 1, RoundDuration: 10 * time.Millisecond, VotingWindow: time.Minute})
	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))
	expect(t, h.events, core.EvtBattleRoundVoting, 500*time.Millisecond)

	err := h.do(func(m *Machine) error {
		_, err := m.CastVote("u1", "nobody")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInvalidContestant)
}

func TestMultiRound_CumulativeTally(t *testing.T) {
	h := newHarness(t, Config{MaxRounds: 2, RoundDuration: 10 * time.Millisecond, VotingWindow: 100 * time.Millisecond})
	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))

	expect(t, h.events, core.EvtBattleRoundVoting, 500*time.Millisecond)
	h.vote(t, "u1", x)
	h.vote(t, "u2", y)
	r1 := expect(t, h.events, core.EvtBattleRoundResult, time.Second)
	assert.Equal(t, domain.Tally{x: 1, y: 1}, r1.RoundTally)

	next := expect(t, h.events, core.EvtBattleStarted, 100*time.Millisecond)
	assert.Equal(t, 2, next.Round)
	assert.Equal(t, domain.BattleActive, next.Status)

	expect(t, h.events, core.EvtBattleRoundVoting, 500*time.Millisecond)
	h.vote(t, "u1", y)
	r2 := expect(t, h.events, core.EvtBattleRoundResult, time.Second)
	assert.Equal(t, domain.Tally{x: 0, y: 1}, r2.RoundTally)
	assert.Equal(t, domain.Tally{x: 1, y: 2}, r2.Tally)

	done := expect(t, h.events, core.EvtBattleCompleted, 100*time.Millisecond)
	assert.Equal(t, y, done.Winner)
}

func TestTieIsAnOutcome(t *testing.T) {
	h := newHarness(t, Config{MaxRounds: 1, RoundDuration: 10 * time.Millisecond, VotingWindow: 60 * time.Millisecond})
	require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))
	expect(t, h.events, core.EvtBattleRoundVoting, 500*time.Millisecond)

	done := expect(t, h.events, core.EvtBattleCompleted, time.Second)
	assert.True(t, done.Tie)
	assert.Empty(t, done.Winner)
}

type position struct {
	round int
	rank  int
}

func (p position) before(o position) bool {
	return p.round < o.round || (p.round == o.round && p.rank <= o.rank)
}

// Random votes and aborts never make a battle observe a backward transition.
func TestStatusIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 6; i++ {
		h := newHarness(t, Config{
			MaxRounds:     1 + rng.Intn(3),
			RoundDuration: time.Duration(2+rng.Intn(6)) * time.Millisecond,
			VotingWindow:  time.Duration(2+rng.Intn(6)) * time.Millisecond,
		})
		require.NoError(t, h.do(func(m *Machine) error { return m.Start() }))

		abortAt := time.Duration(rng.Intn(40)) * time.Millisecond
		stop := time.After(abortAt)
	drive:
		for {
			select {
			case <-stop:
				_ = h.do(func(m *Machine) error { return m.Abort("random") })
				break drive
			default:
				_ = h.do(func(m *Machine) error {
					_, _ = m.CastVote(domain.UserID(fmt.Sprintf("u%d", rng.Intn(5))), [2]domain.UserID{x, y}[rng.Intn(2)])
					return nil
				})
				time.Sleep(time.Millisecond)
			}
		}

		last := position{}
		completed := false
		for {
			select {
			case ev := <-h.events:
				require.False(t, completed, "event %s after completion", ev.Type)
				cur := position{round: ev.Round, rank: ev.Status.Rank()}
				require.True(t, last.before(cur), "backward transition %+v -> %+v", last, cur)
				last = cur
				completed = ev.Type == core.EvtBattleCompleted
				continue
			case <-time.After(50 * time.Millisecond):
			}
			break
		}
		assert.True(t, completed)
		assert.Len(t, h.results, 1)
	}
}
