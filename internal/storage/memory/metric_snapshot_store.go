package memory

import (
	"context"
	"sync"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// MetricSnapshotStore is an in-memory implementation of
// storage.MetricSnapshotStore.
type MetricSnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.MetricSnapshot // keyed by instance_id
}

// NewMetricSnapshotStore creates a new in-memory metric snapshot store.
func NewMetricSnapshotStore() *MetricSnapshotStore {
	return &MetricSnapshotStore{
		data: make(map[string][]*domain.MetricSnapshot),
	}
}

// Insert adds one snapshot row.
func (s *MetricSnapshotStore) Insert(_ context.Context, snap *domain.MetricSnapshot) error {
	if snap == nil || snap.InstanceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotCopy := *snap
	s.data[snap.InstanceID] = append(s.data[snap.InstanceID], &snapshotCopy)
	return nil
}

// GetByInstanceID retrieves snapshots ordered by created_at ASC.
func (s *MetricSnapshotStore) GetByInstanceID(_ context.Context, instanceID string) ([]*domain.MetricSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MetricSnapshot
	for _, snap := range s.data[instanceID] {
		snapshotCopy := *snap
		result = append(result, &snapshotCopy)
	}
	return result, nil
}

var _ storage.MetricSnapshotStore = (*MetricSnapshotStore)(nil)
