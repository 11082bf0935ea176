package signal

import (
	"time"

	"github.com/dkeye/Cypher/internal/app"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog/log"
)

type battleRef struct {
	BattleID domain.BattleID `json:"battleId"`
}

func (rt *Router) handleCreateBattle(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		ContestantA          domain.UserID `json:"contestantA"`
		ContestantB          domain.UserID `json:"contestantB"`
		MaxRounds            int           `json:"maxRounds"`
		RoundDurationSeconds int           `json:"roundDurationSeconds"`
	}](data)
	if err != nil {
		return nil, err
	}
	if p.MaxRounds < 0 || p.RoundDurationSeconds < 0 {
		return nil, domain.ErrBadRounds
	}

	snap, err := rt.orch.CreateBattle(sid, app.BattleParams{
		ContestantA:   p.ContestantA,
		ContestantB:   p.ContestantB,
		MaxRounds:     p.MaxRounds,
		RoundDuration: time.Duration(p.RoundDurationSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("battle", string(snap.BattleID)).Msg("battle created")
	// battle-created is broadcast to the whole room, requester included.
	return nil, nil
}

func (rt *Router) handleStartBattle(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[battleRef](data)
	if err != nil {
		return nil, err
	}
	return nil, rt.orch.StartBattle(sid, p.BattleID)
}

func (rt *Router) handleAbortBattle(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		battleRef
		Reason string `json:"reason"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, rt.orch.AbortBattle(sid, p.BattleID, p.Reason)
}

func (rt *Router) handleCastVote(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		battleRef
		ContestantID domain.UserID `json:"contestantId"`
	}](data)
	if err != nil {
		return nil, err
	}
	round, _, err := rt.orch.CastVote(sid, p.BattleID, p.ContestantID)
	if err != nil {
		return nil, err
	}
	return reply(core.NewVoteAccepted(p.BattleID, round, p.ContestantID)), nil
}

func (rt *Router) handleTimeUp(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[battleRef](data)
	if err != nil {
		return nil, err
	}
	rt.orch.TimeUp(sid, p.BattleID)
	return nil, nil
}
