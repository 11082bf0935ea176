// Package vote keeps the ballots of one battle.
//
// An Aggregator is not safe for concurrent use; the owning room serialises
// every call.
package vote

import (
	"github.com/dkeye/Cypher/internal/domain"
)

type ballotKey struct {
	round int
	voter domain.UserID
}

type Aggregator struct {
	contestants [2]domain.UserID

	ballots    map[ballotKey]domain.UserID
	roundTally map[int]domain.Tally
	tally      domain.Tally
}

func New(a, b domain.UserID) *Aggregator {
	return &Aggregator{
		contestants: [2]domain.UserID{a, b},
		ballots:     make(map[ballotKey]domain.UserID),
		roundTally:  make(map[int]domain.Tally),
		tally:       domain.Tally{a: 0, b: 0},
	}
}

func (a *Aggregator) isContestant(id domain.UserID) bool {
	return id == a.contestants[0] || id == a.contestants[1]
}

// Cast records voter's choice for round, replacing any earlier choice in the
// same round. changed is false when the ballot already held this choice.
func (a *Aggregator) Cast(round int, voter, contestant domain.UserID) (changed bool, err error) {
	if !a.isContestant(contestant) {
		return false, domain.ErrInvalidContestant
	}
	rt := a.roundTallyFor(round)
	key := ballotKey{round: round, voter: voter}

	prev, voted := a.ballots[key]
	if voted && prev == contestant {
		return false, nil
	}
	if voted {
		rt[prev]--
		a.tally[prev]--
	}
	a.ballots[key] = contestant
	rt[contestant]++
	a.tally[contestant]++
	return true, nil
}

func (a *Aggregator) roundTallyFor(round int) domain.Tally {
	rt, ok := a.roundTally[round]
	if !ok {
		rt = domain.Tally{a.contestants[0]: 0, a.contestants[1]: 0}
		a.roundTally[round] = rt
	}
	return rt
}

// Tally is the cumulative count across all rounds.
func (a *Aggregator) Tally() domain.Tally { return a.tally.Clone() }

func (a *Aggregator) RoundTally(round int) domain.Tally {
	return a.roundTallyFor(round).Clone()
}

// Votes returns the final ballot of every voter in round.
func (a *Aggregator) Votes(round int) map[domain.UserID]domain.UserID {
	out := make(map[domain.UserID]domain.UserID)
	for k, v := range a.ballots {
		if k.round == round {
			out[k.voter] = v
		}
	}
	return out
}

// Rounds is the audit trail of rounds 1..upTo.
func (a *Aggregator) Rounds(upTo int) []domain.RoundResult {
	out := make([]domain.RoundResult, 0, upTo)
	for r := 1; r <= upTo; r++ {
		out = append(out, domain.RoundResult{
			Round: r,
			Tally: a.RoundTally(r),
			Votes: a.Votes(r),
		})
	}
	return out
}

// Leader returns the contestant with the most cumulative votes, or tie.
func (a *Aggregator) Leader() (winner domain.UserID, tie bool) {
	x, y := a.contestants[0], a.contestants[1]
	switch {
	case a.tally[x] > a.tally[y]:
		return x, false
	case a.tally[y] > a.tally[x]:
		return y, false
	default:
		return "", true
	}
}
