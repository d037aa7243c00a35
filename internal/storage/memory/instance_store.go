package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// InstanceStore is an in-memory implementation of storage.InstanceStore.
type InstanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Instance // keyed by instance_id
}

// NewInstanceStore creates a new in-memory instance store.
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{
		data: make(map[string]*domain.Instance),
	}
}

// Insert adds a new instance. Returns ErrDuplicateKey if instance_id exists.
func (s *InstanceStore) Insert(_ context.Context, inst *domain.Instance) error {
	if inst == nil || inst.InstanceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[inst.InstanceID]; exists {
		return storage.ErrDuplicateKey
	}

	instanceCopy := *inst
	s.data[inst.InstanceID] = &instanceCopy
	return nil
}

// GetByID retrieves an instance by its ID. Returns ErrNotFound if not exists.
func (s *InstanceStore) GetByID(_ context.Context, instanceID string) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.data[instanceID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	instanceCopy := *inst
	return &instanceCopy, nil
}

// List retrieves all registered instances ordered by created_at ASC.
func (s *InstanceStore) List(_ context.Context) ([]*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Instance, 0, len(s.data))
	for _, inst := range s.data {
		instanceCopy := *inst
		result = append(result, &instanceCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})
	return result, nil
}

var _ storage.InstanceStore = (*InstanceStore)(nil)
