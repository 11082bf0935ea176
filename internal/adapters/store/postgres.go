package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Cypher/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS battle_results (
	battle_id    TEXT PRIMARY KEY,
	room_id      TEXT NOT NULL,
	contestant_a TEXT NOT NULL,
	contestant_b TEXT NOT NULL,
	rounds       INT NOT NULL,
	tally        JSONB NOT NULL,
	winner       TEXT NOT NULL DEFAULT '',
	tie          BOOLEAN NOT NULL,
	aborted      BOOLEAN NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	completed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS battle_votes (
	battle_id     TEXT NOT NULL REFERENCES battle_results (battle_id) ON DELETE CASCADE,
	round         INT NOT NULL,
	voter_id      TEXT NOT NULL,
	contestant_id TEXT NOT NULL,
	PRIMARY KEY (battle_id, round, voter_id)
);`

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Postgres is the durable result store.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: schema: %w", err)
	}
	return nil
}

// RecordBattle stores the result and every final vote in one transaction.
// Recording the same battle twice is a no-op.
func (p *Postgres) RecordBattle(ctx context.Context, res domain.BattleResult) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO battle_results (
			battle_id, room_id, contestant_a, contestant_b, rounds, tally, winner, tie, aborted, reason, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (battle_id) DO NOTHING
	`, res.BattleID, res.RoomID, res.Contestants[0], res.Contestants[1], len(res.Rounds),
		res.Tally, res.Winner, res.Tie, res.Aborted, res.Reason, res.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Debug().Str("module", "store.postgres").Str("battle", string(res.BattleID)).Msg("result already recorded")
		return tx.Commit(ctx)
	}

	var rows [][]any
	for _, rr := range res.Rounds {
		for voter, contestant := range rr.Votes {
			rows = append(rows, []any{string(res.BattleID), rr.Round, string(voter), string(contestant)})
		}
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"battle_votes"},
			[]string{"battle_id", "round", "voter_id", "contestant_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("postgres: copy votes: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (p *Postgres) BattleResult(ctx context.Context, id domain.BattleID) (domain.BattleResult, error) {
	var (
		res    domain.BattleResult
		rounds int
	)
	err := p.pool.QueryRow(ctx, `
		SELECT battle_id, room_id, contestant_a, contestant_b, rounds, tally, winner, tie, aborted, reason, completed_at
		FROM battle_results WHERE battle_id = $1
	`, id).Scan(&res.BattleID, &res.RoomID, &res.Contestants[0], &res.Contestants[1], &rounds,
		&res.Tally, &res.Winner, &res.Tie, &res.Aborted, &res.Reason, &res.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BattleResult{}, domain.ErrBattleNotFound
	}
	if err != nil {
		return domain.BattleResult{}, fmt.Errorf("postgres: select result: %w", err)
	}

	res.Rounds = make([]domain.RoundResult, rounds)
	for i := range res.Rounds {
		res.Rounds[i] = domain.RoundResult{
			Round: i + 1,
			Tally: domain.Tally{res.Contestants[0]: 0, res.Contestants[1]: 0},
			Votes: map[domain.UserID]domain.UserID{},
		}
	}

	rows, err := p.pool.Query(ctx, `
		SELECT round, voter_id, contestant_id FROM battle_votes WHERE battle_id = $1 ORDER BY round
	`, id)
	if err != nil {
		return domain.BattleResult{}, fmt.Errorf("postgres: select votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			round             int
			voter, contestant domain.UserID
		)
		if err := rows.Scan(&round, &voter, &contestant); err != nil {
			return domain.BattleResult{}, fmt.Errorf("postgres: scan vote: %w", err)
		}
		if round < 1 || round > rounds {
			continue
		}
		rr := &res.Rounds[round-1]
		rr.Votes[voter] = contestant
		rr.Tally[contestant]++
	}
	if err := rows.Err(); err != nil {
		return domain.BattleResult{}, fmt.Errorf("postgres: votes: %w", err)
	}
	return res, nil
}
