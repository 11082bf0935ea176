package orch

import (
	"encoding/json"

	"github.com/dkeye/Cypher/internal/app"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) Join(sid core.SessionID, room domain.RoomID, opts app.JoinOptions) (core.RoomSnapshot, error) {
	snap, err := o.Rooms.Join(sid, room, opts)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Msg("join rejected")
		return snap, err
	}
	return snap, nil
}

func (o *Orchestrator) Leave(sid core.SessionID) {
	o.Rooms.Leave(sid)
}

func (o *Orchestrator) SetMute(sid core.SessionID, muted bool) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.SetMute(sid, muted)
}

func (o *Orchestrator) SetMediaState(sid core.SessionID, audio, video, screen bool) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.SetMediaState(sid, audio, video, screen)
}

func (o *Orchestrator) SetAudioLevel(sid core.SessionID, level int) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.SetAudioLevel(sid, level)
}

func (o *Orchestrator) RaiseHand(sid core.SessionID) (int, error) {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return 0, err
	}
	return r.RaiseHand(sid)
}

func (o *Orchestrator) LowerHand(sid core.SessionID) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.LowerHand(sid)
}

func (o *Orchestrator) StartRecording(sid core.SessionID) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.StartRecording(sid)
}

func (o *Orchestrator) StopRecording(sid core.SessionID) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.StopRecording(sid)
}

func (o *Orchestrator) TransferOwner(sid core.SessionID, to domain.UserID) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.TransferOwner(sid, to)
}

func (o *Orchestrator) UpdateLayer(sid core.SessionID, collaborationID string, data json.RawMessage) error {
	r, err := o.Rooms.RoomOf(sid)
	if err != nil {
		return err
	}
	return r.UpdateLayer(sid, collaborationID, data)
}
