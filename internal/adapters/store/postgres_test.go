package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dkeye/Cypher/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPostgres needs a disposable database in CYPHER_DATABASE_URL.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("CYPHER_DATABASE_URL")
	if dsn == "" {
		t.Skip("CYPHER_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	pg := NewPostgres(pool)
	require.NoError(t, pg.EnsureSchema(ctx))
	return pg
}

func twoRoundResult() domain.BattleResult {
	res := sampleResult(uuid.NewString())
	res.Rounds = append(res.Rounds, domain.RoundResult{
		Round: 2,
		Tally: domain.Tally{"x": 0, "y": 2},
		Votes: map[domain.UserID]domain.UserID{"v1": "y", "v3": "y"},
	})
	res.Tally = domain.Tally{"x": 2, "y": 3}
	res.Winner = "y"
	return res
}

func TestPostgres_RoundTrip(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	want := twoRoundResult()

	require.NoError(t, pg.RecordBattle(ctx, want))
	got, err := pg.BattleResult(ctx, want.BattleID)
	require.NoError(t, err)

	assert.Equal(t, want.RoomID, got.RoomID)
	assert.Equal(t, want.Contestants, got.Contestants)
	assert.Equal(t, want.Tally, got.Tally)
	assert.Equal(t, want.Winner, got.Winner)
	assert.True(t, want.CompletedAt.Equal(got.CompletedAt))
	assert.Equal(t, want.Rounds, got.Rounds, "round tallies are rebuilt from the stored votes")
}

func TestPostgres_RecordIsIdempotent(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	first := twoRoundResult()

	require.NoError(t, pg.RecordBattle(ctx, first))
	again := first
	again.Winner = "x"
	again.Reason = "replayed"
	require.NoError(t, pg.RecordBattle(ctx, again))

	got, err := pg.BattleResult(ctx, first.BattleID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("y"), got.Winner)
	assert.Empty(t, got.Reason)
	assert.Len(t, got.Rounds[0].Votes, 3)
}

func TestPostgres_Miss(t *testing.T) {
	pg := newTestPostgres(t)
	_, err := pg.BattleResult(context.Background(), domain.BattleID(uuid.NewString()))
	assert.ErrorIs(t, err, domain.ErrBattleNotFound)
}
