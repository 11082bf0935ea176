package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Cypher/internal/domain"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "cypher:battle:"

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// RedisCache keeps recent results for the result endpoint.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func resultKey(id domain.BattleID) string { return resultKeyPrefix + string(id) }

func (r *RedisCache) RecordBattle(ctx context.Context, res domain.BattleResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: encode result: %w", err)
	}
	if err := r.client.Set(ctx, resultKey(res.BattleID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

func (r *RedisCache) BattleResult(ctx context.Context, id domain.BattleID) (domain.BattleResult, error) {
	b, err := r.client.Get(ctx, resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BattleResult{}, domain.ErrBattleNotFound
	}
	if err != nil {
		return domain.BattleResult{}, fmt.Errorf("redis: get: %w", err)
	}
	var res domain.BattleResult
	if err := json.Unmarshal(b, &res); err != nil {
		return domain.BattleResult{}, fmt.Errorf("redis: decode result: %w", err)
	}
	return res, nil
}
