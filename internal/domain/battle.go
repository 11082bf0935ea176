package domain

import "time"

type BattleID string

type BattleStatus string

const (
	BattleWaiting   BattleStatus = "waiting"
	BattleActive    BattleStatus = "active"
	BattleVoting    BattleStatus = "voting"
	BattleCompleted BattleStatus = "completed"
)

// Rank orders statuses within a round; transitions only ever increase it,
// except the active re-entry that starts the next round.
func (s BattleStatus) Rank() int {
	switch s {
	case BattleWaiting:
		return 0
	case BattleActive:
		return 1
	case BattleVoting:
		return 2
	case BattleCompleted:
		return 3
	default:
		return -1
	}
}

// Tally maps contestant id to vote count.
type Tally map[UserID]int

func (t Tally) Clone() Tally {
	out := make(Tally, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t Tally) Sum() int {
	n := 0
	for _, v := range t {
		n += v
	}
	return n
}

type RoundResult struct {
	Round int   `json:"round"`
	Tally Tally `json:"tally"`
	// Votes is the final vote of every voter in the round, kept for audit.
	Votes map[UserID]UserID `json:"votes"`
}

// BattleResult is what the persistence sink receives when a battle completes.
type BattleResult struct {
	BattleID    BattleID      `json:"battleId"`
	RoomID      RoomID        `json:"roomId"`
	Contestants [2]UserID     `json:"contestants"`
	Rounds      []RoundResult `json:"rounds"`
	Tally       Tally         `json:"tally"`
	Winner      UserID        `json:"winner,omitempty"`
	Tie         bool          `json:"tie"`
	Aborted     bool          `json:"aborted"`
	Reason      string        `json:"reason,omitempty"`
	CompletedAt time.Time     `json:"completedAt"`
}
