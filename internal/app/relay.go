package app

import (
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog/log"
)

// SignalRelay forwards opaque signaling payloads between members of one room.
type SignalRelay struct {
	reg     *Registry
	limiter *RateLimiter
}

func NewSignalRelay(reg *Registry, limiter *RateLimiter) *SignalRelay {
	return &SignalRelay{reg: reg, limiter: limiter}
}

// Relay sends payload from the sender's connection to user to. Calls over the
// rate limit and targets that are gone or in another room are dropped and
// logged; the sender is never told.
func (s *SignalRelay) Relay(from core.SessionID, to domain.UserID, payload core.SignalPayload) error {
	if err := s.limiter.Check(from); err != nil {
		log.Debug().Err(err).Str("module", "app.relay").Str("sid", string(from)).Msg("signal dropped")
		return nil
	}
	sender, ok := s.reg.Lookup(from)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if sender.Room == "" {
		return domain.ErrNotInRoom
	}

	target, ok := s.reg.SessionOfUser(to)
	if !ok {
		log.Info().Str("module", "app.relay").Str("sid", string(from)).Str("to", string(to)).Msg("signal target gone, dropped")
		return nil
	}
	if room, ok := s.reg.RoomOf(target); !ok || room != sender.Room {
		log.Info().
			Str("module", "app.relay").
			Str("sid", string(from)).
			Str("to", string(to)).
			Str("room", string(sender.Room)).
			Msg("signal target not in sender room, dropped")
		return nil
	}

	s.reg.Send(target, core.NewSignal(sender.User.ID, payload))
	return nil
}

// Forget releases per-connection relay state.
func (s *SignalRelay) Forget(sid core.SessionID) {
	s.limiter.Forget(sid)
}
