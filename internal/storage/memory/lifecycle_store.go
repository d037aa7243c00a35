package memory

import (
	"context"
	"sync"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// LifecycleStore is an in-memory implementation of storage.LifecycleStore.
type LifecycleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LifecycleRecord // keyed by strategy_id + "@" + strategy_version
}

// NewLifecycleStore creates a new in-memory lifecycle store.
func NewLifecycleStore() *LifecycleStore {
	return &LifecycleStore{
		data: make(map[string]*domain.LifecycleRecord),
	}
}

func lifecycleKey(strategyID, strategyVersion string) string {
	return strategyID + "@" + strategyVersion
}

// Get retrieves the lifecycle record. Returns ErrNotFound if the strategy has
// never been seen.
func (s *LifecycleStore) Get(_ context.Context, strategyID, strategyVersion string) (*domain.LifecycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[lifecycleKey(strategyID, strategyVersion)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recordCopy := *rec
	recordCopy.RecentVerdicts = append([]domain.Verdict(nil), rec.RecentVerdicts...)
	return &recordCopy, nil
}

// Put inserts or replaces the lifecycle record.
func (s *LifecycleStore) Put(_ context.Context, rec *domain.LifecycleRecord) error {
	if rec == nil || rec.StrategyID == "" || rec.StrategyVersion == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *rec
	recordCopy.RecentVerdicts = append([]domain.Verdict(nil), rec.RecentVerdicts...)
	s.data[lifecycleKey(rec.StrategyID, rec.StrategyVersion)] = &recordCopy
	return nil
}

var _ storage.LifecycleStore = (*LifecycleStore)(nil)
