package memory

import (
	"context"
	"sync"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// ThresholdsStore is an in-memory implementation of storage.ThresholdsStore.
// The most recently inserted version is active.
type ThresholdsStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.ThresholdsConfig // keyed by config_version
	active string
}

// NewThresholdsStore creates a new in-memory thresholds store.
func NewThresholdsStore() *ThresholdsStore {
	return &ThresholdsStore{
		data: make(map[string]*domain.ThresholdsConfig),
	}
}

// Insert adds a new thresholds version. Returns ErrDuplicateKey if
// config_version exists; published versions are immutable.
func (s *ThresholdsStore) Insert(_ context.Context, cfg *domain.ThresholdsConfig) error {
	if cfg == nil || cfg.ConfigVersion == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[cfg.ConfigVersion]; exists {
		return storage.ErrDuplicateKey
	}

	configCopy := *cfg
	s.data[cfg.ConfigVersion] = &configCopy
	s.active = cfg.ConfigVersion
	return nil
}

// GetByVersion retrieves one version. Returns ErrNotFound if not exists.
func (s *ThresholdsStore) GetByVersion(_ context.Context, configVersion string) (*domain.ThresholdsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, exists := s.data[configVersion]
	if !exists {
		return nil, storage.ErrNotFound
	}
	configCopy := *cfg
	return &configCopy, nil
}

// GetActive retrieves the currently active version.
func (s *ThresholdsStore) GetActive(_ context.Context) (*domain.ThresholdsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == "" {
		return nil, storage.ErrNotFound
	}
	configCopy := *s.data[s.active]
	return &configCopy, nil
}

var _ storage.ThresholdsStore = (*ThresholdsStore)(nil)
