package signal

import (
	"github.com/dkeye/Cypher/internal/app"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

func (rt *Router) handleJoin(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		RoomID   domain.RoomID `json:"roomId"`
		Username string        `json:"username"`
		IsHost   bool          `json:"isHost"`
		Kind     string        `json:"kind"`
		Capacity int           `json:"capacity"`
		BeatID   string        `json:"beatId"`
	}](data)
	if err != nil {
		return nil, err
	}

	opts := app.JoinOptions{IsHost: p.IsHost, Capacity: p.Capacity, BeatID: p.BeatID}
	if p.Kind != "" {
		if opts.Kind, err = domain.ParseRoomKind(p.Kind); err != nil {
			return nil, err
		}
	}
	if p.Username != "" {
		if _, err := rt.orch.Rename(sid, p.Username); err != nil {
			return nil, err
		}
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.RoomID)).Bool("host", p.IsHost).Msg("join-room")
	snap, err := rt.orch.Join(sid, p.RoomID, opts)
	if err != nil {
		return nil, err
	}
	return reply(core.NewRoomState(snap)), nil
}

func (rt *Router) handleLeave(sid core.SessionID, _ []byte) ([]core.Event, error) {
	rt.orch.Leave(sid)
	return reply(core.NewSimple(core.EvtLeft)), nil
}

func (rt *Router) handleMute(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		Muted bool `json:"muted"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, rt.orch.SetMute(sid, p.Muted)
}

func (rt *Router) handleRaiseHand(sid core.SessionID, _ []byte) ([]core.Event, error) {
	_, err := rt.orch.RaiseHand(sid)
	return nil, err
}

func (rt *Router) handleLowerHand(sid core.SessionID, _ []byte) ([]core.Event, error) {
	return nil, rt.orch.LowerHand(sid)
}

func (rt *Router) handleStartRecording(sid core.SessionID, _ []byte) ([]core.Event, error) {
	return nil, rt.orch.StartRecording(sid)
}

func (rt *Router) handleStopRecording(sid core.SessionID, _ []byte) ([]core.Event, error) {
	return nil, rt.orch.StopRecording(sid)
}

func (rt *Router) handleTransferOwner(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		UserID domain.UserID `json:"userId"`
	}](data)
	if err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, domain.ErrInvalidUserID
	}
	return nil, rt.orch.TransferOwner(sid, p.UserID)
}

func (rt *Router) handleUpdateLayer(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		CollaborationID string          `json:"collaborationId"`
		LayerData       json.RawMessage `json:"layerData"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, rt.orch.UpdateLayer(sid, p.CollaborationID, p.LayerData)
}
