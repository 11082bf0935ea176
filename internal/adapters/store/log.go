package store

import (
	"context"

	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog"
)

// LogSink writes one structured line per finished battle.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l.With().Str("module", "store.log").Logger()}
}

func (s *LogSink) RecordBattle(_ context.Context, res domain.BattleResult) error {
	s.log.Info().
		Str("battle", string(res.BattleID)).
		Str("room", string(res.RoomID)).
		Str("winner", string(res.Winner)).
		Bool("tie", res.Tie).
		Bool("aborted", res.Aborted).
		Str("reason", res.Reason).
		Int("rounds", len(res.Rounds)).
		Int("votes", res.Tally.Sum()).
		Msg("battle recorded")
	return nil
}
