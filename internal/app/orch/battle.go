package orch

import (
	"github.com/dkeye/Cypher/internal/app"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) CreateBattle(sid core.SessionID, p app.BattleParams) (core.BattleSnapshot, error) {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return core.BattleSnapshot{}, err
	}
	return r.CreateBattle(sid, p)
}

func (o *Orchestrator) StartBattle(sid core.SessionID, id domain.BattleID) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.StartBattle(sid, id)
}

func (o *Orchestrator) AbortBattle(sid core.SessionID, id domain.BattleID, reason string) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.AbortBattle(sid, id, reason)
}

func (o *Orchestrator) CastVote(sid core.SessionID, id domain.BattleID, contestant domain.UserID) (round int, changed bool, err error) {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return 0, false, err
	}
	return r.CastVote(sid, id, contestant)
}

// TimeUp records a client countdown reaching zero. Round timers are owned by
// the server, so this never moves a battle.
func (o *Orchestrator) TimeUp(sid core.SessionID, id domain.BattleID) {
	log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("battle", string(id)).Msg("client time-up ignored")
}
