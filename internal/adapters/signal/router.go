package signal

import (
	"errors"
	"fmt"

	"github.com/dkeye/Cypher/internal/app/orch"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// handler serves one inbound type. Events it returns go to the requester only.
type handler func(sid core.SessionID, data []byte) ([]core.Event, error)

// Router is the single dispatch point for inbound frames.
type Router struct {
	orch   *orch.Orchestrator
	routes map[string]handler
}

func NewRouter(o *orch.Orchestrator) *Router {
	rt := &Router{orch: o}
	rt.routes = map[string]handler{
		"join-room":       rt.handleJoin,
		"leave-room":      rt.handleLeave,
		"mute":            rt.handleMute,
		"media-state":     rt.handleMediaState,
		"audio-level":     rt.handleAudioLevel,
		"raise-hand":      rt.handleRaiseHand,
		"lower-hand":      rt.handleLowerHand,
		"start-recording": rt.handleStartRecording,
		"stop-recording":  rt.handleStopRecording,
		"transfer-owner":  rt.handleTransferOwner,
		"update-layer":    rt.handleUpdateLayer,
		"signal":          rt.handleSignal,
		"create-battle":   rt.handleCreateBattle,
		"start-battle":    rt.handleStartBattle,
		"abort-battle":    rt.handleAbortBattle,
		"cast-vote":       rt.handleCastVote,
		"time-up":         rt.handleTimeUp,
		"rename":          rt.handleRename,
		"whoami":          rt.handleWhoAmI,
		"ping":            rt.handlePing,
	}
	return rt
}

// Handle parses one envelope and dispatches it. It never fails: validation
// problems are logged and dropped, other errors become an error event.
func (rt *Router) Handle(sid core.SessionID, data []byte) []core.Event {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		return nil
	}

	h, err := rt.route(env.Type)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("message dropped")
		return nil
	}

	out, err := h(sid, data)
	if err == nil {
		return out
	}
	if errors.Is(err, domain.ErrValidation) {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("invalid message dropped")
		return nil
	}
	log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("request rejected")
	return []core.Event{core.NewError(env.Type, err)}
}

func (rt *Router) route(typ string) (handler, error) {
	h, ok := rt.routes[typ]
	if !ok {
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownType, typ)
	}
	return h, nil
}

func decode[T any](data []byte) (T, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%w: %v", domain.ErrBadEnvelope, err)
	}
	return p, nil
}

func reply(evs ...core.Event) []core.Event { return evs }
