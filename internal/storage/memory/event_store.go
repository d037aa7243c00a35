package memory

import (
	"context"
	"sync"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore. Appends on
// the same instance serialize on the store lock, so the head check and the
// insert are one atomic step.
type EventStore struct {
	mu     sync.RWMutex
	chains map[string][]*domain.TrackRecordEvent // keyed by instance_id, sequence order
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		chains: make(map[string][]*domain.TrackRecordEvent),
	}
}

// Append adds the next event conditionally on the head hash.
func (s *EventStore) Append(_ context.Context, e *domain.TrackRecordEvent, expectedPrevHash string) error {
	if e == nil || e.InstanceID == "" || e.Hash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chainEvents := s.chains[e.InstanceID]
	if len(chainEvents) == 0 {
		if e.Sequence != 0 {
			return storage.ErrConflict
		}
	} else {
		head := chainEvents[len(chainEvents)-1]
		if head.Hash != expectedPrevHash || e.Sequence != head.Sequence+1 {
			return storage.ErrConflict
		}
	}

	// Store a copy to prevent external mutation
	eventCopy := *e
	eventCopy.Payload = append([]byte(nil), e.Payload...)
	s.chains[e.InstanceID] = append(chainEvents, &eventCopy)
	return nil
}

// Head retrieves the highest-sequence event. Returns ErrNotFound for an
// empty chain.
func (s *EventStore) Head(_ context.Context, instanceID string) (*domain.TrackRecordEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chainEvents := s.chains[instanceID]
	if len(chainEvents) == 0 {
		return nil, storage.ErrNotFound
	}
	headCopy := *chainEvents[len(chainEvents)-1]
	return &headCopy, nil
}

// GetRange retrieves events with sequence in [first, last], ordered ASC.
func (s *EventStore) GetRange(_ context.Context, instanceID string, first, last int64) ([]*domain.TrackRecordEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrackRecordEvent
	for _, e := range s.chains[instanceID] {
		if e.Sequence >= first && e.Sequence <= last {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}
	return result, nil
}

// MaxSequence returns the highest sequence, or -1 for an empty chain.
func (s *EventStore) MaxSequence(_ context.Context, instanceID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chainEvents := s.chains[instanceID]
	if len(chainEvents) == 0 {
		return -1, nil
	}
	return chainEvents[len(chainEvents)-1].Sequence, nil
}

// Tamper overwrites a stored event in place. Test helper: production code has
// no mutation path, which is the property the verifier exists to check.
func (s *EventStore) Tamper(instanceID string, sequence int64, mutate func(*domain.TrackRecordEvent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.chains[instanceID] {
		if e.Sequence == sequence {
			mutate(e)
			return true
		}
	}
	return false
}

var _ storage.EventStore = (*EventStore)(nil)
