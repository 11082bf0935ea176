package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Multi fans a result out to every sink concurrently. One failing sink does
// not stop the others.
type Multi []core.ResultSink

func (m Multi) RecordBattle(ctx context.Context, res domain.BattleResult) error {
	var g errgroup.Group
	errs := make([]error, len(m))
	for i, s := range m {
		i, s := i, s
		g.Go(func() error {
			if err := s.RecordBattle(ctx, res); err != nil {
				errs[i] = fmt.Errorf("sink %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Readers returns the first result found, asking each reader in order.
type Readers []core.ResultReader

func (rs Readers) BattleResult(ctx context.Context, id domain.BattleID) (domain.BattleResult, error) {
	var errs []error
	for _, r := range rs {
		res, err := r.BattleResult(ctx, id)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return domain.BattleResult{}, errors.Join(errs...)
	}
	return domain.BattleResult{}, domain.ErrBattleNotFound
}
