package app

import (
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Cypher/internal/app/battle"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/goccy/go-json"
)

// fakeConn is an in-memory SignalConnection with a bounded queue.
type fakeConn struct {
	mu     sync.Mutex
	frames chan core.Frame
	closed bool
}

func newFakeConn(buf int) *fakeConn {
	return &fakeConn{frames: make(chan core.Frame, buf)}
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.frames <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *fakeConn) EvictOldest() bool {
	select {
	case <-c.frames:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type wireEvent map[string]any

func (e wireEvent) typ() string {
	s, _ := e["type"].(string)
	return s
}

// helper: receive one event with a timeout so tests never hang
func recv(t *testing.T, c *fakeConn, within time.Duration) wireEvent {
	t.Helper()
	select {
	case f := <-c.frames:
		var ev wireEvent
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

// recvType skips events until one of type want arrives.
func recvType(t *testing.T, c *fakeConn, want string, within time.Duration) wireEvent {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		ev := recv(t, c, time.Until(deadline))
		if ev.typ() == want {
			return ev
		}
	}
}

func recvNone(t *testing.T, c *fakeConn, within time.Duration) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("expected no event within %v, got %s", within, f)
	case <-time.After(within):
	}
}

func drain(c *fakeConn) {
	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

type hub struct {
	reg   *Registry
	rooms *RoomManager
	relay *SignalRelay
}

func testSettings() RoomSettings {
	return RoomSettings{
		MaxCapacity: 100,
		Capacity:    map[domain.RoomKind]int{domain.KindCypher: 12, domain.KindBattle: 100},
		Battle: battle.Config{
			MaxRounds:     1,
			RoundDuration: time.Minute,
			VotingWindow:  time.Minute,
		},
	}
}

func newHub(t *testing.T, sink core.ResultSink, settings RoomSettings) *hub {
	t.Helper()
	reg := NewRegistry(DropOldest)
	h := &hub{
		reg:   reg,
		rooms: NewRoomManager(reg, sink, settings),
		relay: NewSignalRelay(reg, NewRateLimiter(50)),
	}
	reg.OnDisconnect(func(c Connection) {
		h.rooms.LeaveRoom(c.Room, c.SID)
		h.relay.Forget(c.SID)
	})
	t.Cleanup(h.rooms.Close)
	return h
}

func (h *hub) connect(id string) (core.SessionID, *fakeConn) {
	c := newFakeConn(64)
	sid := h.reg.Register(c, domain.User{ID: domain.UserID(id), Username: id})
	return sid, c
}

var host = JoinOptions{Kind: domain.KindCypher, IsHost: true}
