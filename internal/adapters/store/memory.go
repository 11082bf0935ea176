// Package store records finished battles. Every type here implements
// core.ResultSink; the readable ones also implement core.ResultReader.
package store

import (
	"context"
	"sync"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
)

// Memory keeps results for the lifetime of the process.
type Memory struct {
	mu      sync.RWMutex
	results map[domain.BattleID]domain.BattleResult
}

var (
	_ core.ResultSink   = (*Memory)(nil)
	_ core.ResultReader = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{results: make(map[domain.BattleID]domain.BattleResult)}
}

func (m *Memory) RecordBattle(_ context.Context, res domain.BattleResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[res.BattleID] = res
	return nil
}

func (m *Memory) BattleResult(_ context.Context, id domain.BattleID) (domain.BattleResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[id]
	if !ok {
		return domain.BattleResult{}, domain.ErrBattleNotFound
	}
	return res, nil
}
