package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/core/mocks"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sampleResult(id string) domain.BattleResult {
	return domain.BattleResult{
		BattleID:    domain.BattleID(id),
		RoomID:      "r1",
		Contestants: [2]domain.UserID{"x", "y"},
		Rounds: []domain.RoundResult{{
			Round: 1,
			Tally: domain.Tally{"x": 2, "y": 1},
			Votes: map[domain.UserID]domain.UserID{"v1": "x", "v2": "x", "v3": "y"},
		}},
		Tally:       domain.Tally{"x": 2, "y": 1},
		Winner:      "x",
		CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.BattleResult(ctx, "b1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, m.RecordBattle(ctx, sampleResult("b1")))
	got, err := m.BattleResult(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, sampleResult("b1"), got)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(zerolog.New(&buf))
	require.NoError(t, s.RecordBattle(context.Background(), sampleResult("b1")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "b1", line["battle"])
	assert.Equal(t, "x", line["winner"])
	assert.EqualValues(t, 3, line["votes"])
	assert.Equal(t, "store.log", line["module"])
}

func TestMulti_AllSinksRunDespiteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockResultSink(ctrl)
	failing.EXPECT().RecordBattle(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	mem := NewMemory()

	err := Multi{failing, mem}.RecordBattle(context.Background(), sampleResult("b1"))
	assert.ErrorContains(t, err, "db down")

	_, err = mem.BattleResult(context.Background(), "b1")
	assert.NoError(t, err)
}

type brokenReader struct{}

func (brokenReader) BattleResult(context.Context, domain.BattleID) (domain.BattleResult, error) {
	return domain.BattleResult{}, errors.New("connection refused")
}

func TestReaders(t *testing.T) {
	ctx := context.Background()
	first, second := NewMemory(), NewMemory()
	require.NoError(t, second.RecordBattle(ctx, sampleResult("b1")))

	tests := []struct {
		name    string
		readers Readers
		id      domain.BattleID
		wantErr error
	}{
		{"falls through misses", Readers{first, second}, "b1", nil},
		{"all miss", Readers{first, second}, "b2", domain.ErrBattleNotFound},
		{"broken reader skipped on hit", Readers{brokenReader{}, second}, "b1", nil},
		{"no readers", nil, "b1", domain.ErrBattleNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.readers.BattleResult(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, res.BattleID)
		})
	}

	_, err := Readers{brokenReader{}, first}.BattleResult(ctx, "b1")
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordBattleHandler(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	h := RecordBattleHandler(mem)

	payload, err := json.Marshal(sampleResult("b1"))
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(ctx, asynq.NewTask(TaskRecordBattle, payload)))

	got, err := mem.BattleResult(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("x"), got.Winner)
	assert.Equal(t, sampleResult("b1").Rounds, got.Rounds)

	err = h.ProcessTask(ctx, asynq.NewTask(TaskRecordBattle, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

var (
	_ core.ResultSink   = Multi(nil)
	_ core.ResultReader = Readers(nil)
	_ core.ResultSink   = (*Postgres)(nil)
	_ core.ResultReader = (*Postgres)(nil)
	_ core.ResultSink   = (*RedisCache)(nil)
	_ core.ResultReader = (*RedisCache)(nil)
	_ core.ResultSink   = (*QueueSink)(nil)
	_ core.ResultSink   = (*LogSink)(nil)
)
