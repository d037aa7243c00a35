package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Checkpoint // keyed by instance_id
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string][]*domain.Checkpoint),
	}
}

// Insert adds a new checkpoint. Returns ErrDuplicateKey if the
// (instance_id, last_sequence) pair exists.
func (s *CheckpointStore) Insert(_ context.Context, c *domain.Checkpoint) error {
	if c == nil || c.InstanceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data[c.InstanceID] {
		if existing.LastSequence == c.LastSequence {
			return storage.ErrDuplicateKey
		}
	}

	checkpointCopy := *c
	s.data[c.InstanceID] = append(s.data[c.InstanceID], &checkpointCopy)
	sort.Slice(s.data[c.InstanceID], func(i, j int) bool {
		return s.data[c.InstanceID][i].LastSequence < s.data[c.InstanceID][j].LastSequence
	})
	return nil
}

// GetByInstanceID retrieves all checkpoints ordered by last_sequence ASC.
func (s *CheckpointStore) GetByInstanceID(_ context.Context, instanceID string) ([]*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Checkpoint
	for _, c := range s.data[instanceID] {
		checkpointCopy := *c
		result = append(result, &checkpointCopy)
	}
	return result, nil
}

// Latest retrieves the checkpoint with the highest last_sequence.
func (s *CheckpointStore) Latest(_ context.Context, instanceID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cps := s.data[instanceID]
	if len(cps) == 0 {
		return nil, storage.ErrNotFound
	}
	latestCopy := *cps[len(cps)-1]
	return &latestCopy, nil
}

// Tamper overwrites a stored checkpoint in place. Test helper.
func (s *CheckpointStore) Tamper(instanceID string, lastSequence int64, mutate func(*domain.Checkpoint)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.data[instanceID] {
		if c.LastSequence == lastSequence {
			mutate(c)
			return true
		}
	}
	return false
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
