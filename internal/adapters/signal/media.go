package signal

import (
	"fmt"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
)

var errEmptySignal = fmt.Errorf("%w: signal without peer or payload", domain.ErrValidation)

func (rt *Router) handleMediaState(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		AudioEnabled  bool `json:"audioEnabled"`
		VideoEnabled  bool `json:"videoEnabled"`
		ScreenSharing bool `json:"screenSharing"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, rt.orch.SetMediaState(sid, p.AudioEnabled, p.VideoEnabled, p.ScreenSharing)
}

func (rt *Router) handleAudioLevel(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		Level int `json:"level"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, rt.orch.SetAudioLevel(sid, p.Level)
}

// handleSignal forwards sdp/candidate/payload untouched to peerId.
func (rt *Router) handleSignal(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		PeerID domain.UserID `json:"peerId"`
		core.SignalPayload
	}](data)
	if err != nil {
		return nil, err
	}
	if p.PeerID == "" || p.SignalPayload.Empty() {
		return nil, errEmptySignal
	}
	return nil, rt.orch.Signal(sid, p.PeerID, p.SignalPayload)
}
