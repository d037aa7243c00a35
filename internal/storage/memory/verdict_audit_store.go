package memory

import (
	"context"
	"sync"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// VerdictAuditStore is an in-memory implementation of
// storage.VerdictAuditStore.
type VerdictAuditStore struct {
	mu   sync.RWMutex
	rows []*domain.VerdictAuditRow // insertion order == created_at order
}

// NewVerdictAuditStore creates a new in-memory verdict audit store.
func NewVerdictAuditStore() *VerdictAuditStore {
	return &VerdictAuditStore{}
}

// Insert adds one audit row.
func (s *VerdictAuditStore) Insert(_ context.Context, row *domain.VerdictAuditRow) error {
	if row == nil || row.RunID == "" || row.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rowCopy := *row
	rowCopy.ReasonCodes = append([]string(nil), row.ReasonCodes...)
	s.rows = append(s.rows, &rowCopy)
	return nil
}

// GetByStrategy retrieves audit rows for a strategy version, ordered by
// created_at ASC.
func (s *VerdictAuditStore) GetByStrategy(_ context.Context, strategyID, strategyVersion string) ([]*domain.VerdictAuditRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VerdictAuditRow
	for _, row := range s.rows {
		if row.StrategyID == strategyID && row.StrategyVersion == strategyVersion {
			rowCopy := *row
			rowCopy.ReasonCodes = append([]string(nil), row.ReasonCodes...)
			result = append(result, &rowCopy)
		}
	}
	return result, nil
}

var _ storage.VerdictAuditStore = (*VerdictAuditStore)(nil)
