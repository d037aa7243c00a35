package postgres

import (
	"context"
	"fmt"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// LifecycleStore implements storage.LifecycleStore using PostgreSQL.
type LifecycleStore struct {
	pool *Pool
}

// NewLifecycleStore creates a new LifecycleStore.
func NewLifecycleStore(pool *Pool) *LifecycleStore {
	return &LifecycleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LifecycleStore = (*LifecycleStore)(nil)

// Get retrieves the lifecycle record. Returns ErrNotFound if the strategy has
// never been seen.
func (s *LifecycleStore) Get(ctx context.Context, strategyID, strategyVersion string) (*domain.LifecycleRecord, error) {
	query := `
		SELECT strategy_id, strategy_version, state, recent_verdicts, updated_at
		FROM lifecycle_states
		WHERE strategy_id = $1 AND strategy_version = $2
	`

	var rec domain.LifecycleRecord
	var state string
	var verdicts []string
	err := s.pool.QueryRow(ctx, query, strategyID, strategyVersion).Scan(
		&rec.StrategyID,
		&rec.StrategyVersion,
		&state,
		&verdicts,
		&rec.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get lifecycle record: %w", err)
	}

	rec.State = domain.LifecycleState(state)
	rec.RecentVerdicts = make([]domain.Verdict, len(verdicts))
	for i, v := range verdicts {
		rec.RecentVerdicts[i] = domain.Verdict(v)
	}
	return &rec, nil
}

// Put inserts or replaces the lifecycle record.
func (s *LifecycleStore) Put(ctx context.Context, rec *domain.LifecycleRecord) error {
	if rec == nil || rec.StrategyID == "" || rec.StrategyVersion == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO lifecycle_states (
			strategy_id, strategy_version, state, recent_verdicts, updated_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (strategy_id, strategy_version) DO UPDATE SET
			state = EXCLUDED.state,
			recent_verdicts = EXCLUDED.recent_verdicts,
			updated_at = EXCLUDED.updated_at
	`

	verdicts := make([]string, len(rec.RecentVerdicts))
	for i, v := range rec.RecentVerdicts {
		verdicts[i] = string(v)
	}

	_, err := s.pool.Exec(ctx, query,
		rec.StrategyID,
		rec.StrategyVersion,
		string(rec.State),
		verdicts,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put lifecycle record: %w", err)
	}
	return nil
}
