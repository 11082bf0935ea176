package core

import (
	"context"
	"errors"

	"github.com/dkeye/Cypher/internal/domain"
)

// Frame is a raw encoded payload ready for the wire.
type Frame []byte

// SessionID identifies one live transport connection.
type SessionID string

var (
	// ErrBackpressure means the connection send buffer is full.
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend never blocks; it returns ErrBackpressure or ErrConnClosed.
	TrySend(Frame) error
	Close()
}

// Evictor is implemented by connections able to discard their oldest queued frame.
type Evictor interface {
	EvictOldest() bool
}

// ResultReader serves results recorded by a ResultSink.
type ResultReader interface {
	BattleResult(ctx context.Context, id domain.BattleID) (domain.BattleResult, error)
}

// Event is an outbound message; its EventType is the wire "type" field.
type Event interface {
	EventType() string
}

// Publisher fans events out to live connections.
// Delivery is best effort: sends never block and never report failure.
type Publisher interface {
	Send(sid SessionID, ev Event)
	Broadcast(sids []SessionID, ev Event)
}

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks github.com/dkeye/Cypher/internal/core ResultSink

// ResultSink durably records final battle results. Callers treat it as fire-and-forget.
type ResultSink interface {
	RecordBattle(ctx context.Context, res domain.BattleResult) error
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID            domain.UserID `json:"id"`
	Username      string        `json:"username"`
	Muted         bool          `json:"muted"`
	VideoEnabled  bool          `json:"videoEnabled"`
	ScreenSharing bool          `json:"screenSharing"`
	Speaking      bool          `json:"speaking"`
	AudioLevel    int           `json:"audioLevel"`
	HandPosition  int           `json:"handPosition,omitempty"`
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Kind        domain.RoomKind `json:"kind"`
	MemberCount int             `json:"memberCount"`
	Capacity    int             `json:"capacity"`
	Battle      bool            `json:"battle"`
}

// BattleSnapshot is the read-only view of a battle.
type BattleSnapshot struct {
	BattleID        domain.BattleID     `json:"battleId"`
	RoomID          domain.RoomID       `json:"roomId"`
	Status          domain.BattleStatus `json:"status"`
	Round           int                 `json:"round"`
	MaxRounds       int                 `json:"maxRounds"`
	Contestants     [2]domain.UserID    `json:"contestants"`
	Tally           domain.Tally        `json:"tally"`
	Viewers         int                 `json:"viewers"`
	RemainingMs     int64               `json:"remainingMs"`
	RoundDurationMs int64               `json:"roundDurationMs"`
	VotingWindowMs  int64               `json:"votingWindowMs"`
}

// RoomSnapshot is the full state sent to a joiner.
type RoomSnapshot struct {
	RoomID          domain.RoomID   `json:"roomId"`
	Kind            domain.RoomKind `json:"kind"`
	Capacity        int             `json:"capacity"`
	Owner           domain.UserID   `json:"owner"`
	Members         []MemberDTO     `json:"members"`
	Hands           []domain.UserID `json:"hands"`
	BeatID          string          `json:"beatId,omitempty"`
	Recording       bool            `json:"recording"`
	RecordedSeconds float64         `json:"recordedSeconds"`
	Battle          *BattleSnapshot `json:"battle,omitempty"`
}
