package storage

import (
	"context"

	"strategy-verdict-lab/internal/domain"
)

// EventStore provides access to track_record_events storage. Events form a
// per-instance hash chain; the store never updates or deletes rows.
type EventStore interface {
	// Append adds the next event conditionally: the insert succeeds only if
	// the current head hash equals expectedPrevHash (for an empty chain the
	// genesis hash). Returns ErrConflict on a stale head, ErrDuplicateKey if
	// the sequence already exists.
	Append(ctx context.Context, e *domain.TrackRecordEvent, expectedPrevHash string) error

	// Head retrieves the highest-sequence event for an instance. Returns
	// ErrNotFound for an empty chain.
	Head(ctx context.Context, instanceID string) (*domain.TrackRecordEvent, error)

	// GetRange retrieves events with sequence in [first, last] inclusive,
	// ordered by sequence ASC.
	GetRange(ctx context.Context, instanceID string, first, last int64) ([]*domain.TrackRecordEvent, error)

	// MaxSequence returns the highest sequence for an instance, or -1 for an
	// empty chain.
	MaxSequence(ctx context.Context, instanceID string) (int64, error)
}

// CheckpointStore provides access to chain_checkpoints storage.
type CheckpointStore interface {
	// Insert adds a new checkpoint. Returns ErrDuplicateKey if the
	// (instance_id, last_sequence) pair exists.
	Insert(ctx context.Context, c *domain.Checkpoint) error

	// GetByInstanceID retrieves all checkpoints for an instance, ordered by
	// last_sequence ASC.
	GetByInstanceID(ctx context.Context, instanceID string) ([]*domain.Checkpoint, error)

	// Latest retrieves the checkpoint with the highest last_sequence for an
	// instance. Returns ErrNotFound if none exist.
	Latest(ctx context.Context, instanceID string) (*domain.Checkpoint, error)
}

// InstanceStore provides access to live instance registrations.
type InstanceStore interface {
	// Insert adds a new instance. Returns ErrDuplicateKey if instance_id exists.
	Insert(ctx context.Context, inst *domain.Instance) error

	// GetByID retrieves an instance by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, instanceID string) (*domain.Instance, error)

	// List retrieves all registered instances ordered by created_at ASC.
	List(ctx context.Context) ([]*domain.Instance, error)
}

// ThresholdsStore provides access to versioned verdict thresholds. Published
// versions are immutable.
type ThresholdsStore interface {
	// Insert adds a new thresholds version. Returns ErrDuplicateKey if
	// config_version exists.
	Insert(ctx context.Context, cfg *domain.ThresholdsConfig) error

	// GetByVersion retrieves one version. Returns ErrNotFound if not exists.
	GetByVersion(ctx context.Context, configVersion string) (*domain.ThresholdsConfig, error)

	// GetActive retrieves the currently active version. Returns ErrNotFound
	// if no version has been published.
	GetActive(ctx context.Context) (*domain.ThresholdsConfig, error)
}

// LifecycleStore provides access to per-strategy lifecycle state.
type LifecycleStore interface {
	// Get retrieves the lifecycle record for a strategy version. Returns
	// ErrNotFound if the strategy has never been seen.
	Get(ctx context.Context, strategyID, strategyVersion string) (*domain.LifecycleRecord, error)

	// Put inserts or replaces the lifecycle record.
	Put(ctx context.Context, rec *domain.LifecycleRecord) error
}

// VerdictAuditStore provides access to the append-only verdict audit trail.
type VerdictAuditStore interface {
	// Insert adds one audit row per computed verdict.
	Insert(ctx context.Context, row *domain.VerdictAuditRow) error

	// GetByStrategy retrieves audit rows for a strategy version, ordered by
	// created_at ASC.
	GetByStrategy(ctx context.Context, strategyID, strategyVersion string) ([]*domain.VerdictAuditRow, error)
}

// MetricSnapshotStore provides access to computed track-record metric rows.
type MetricSnapshotStore interface {
	// Insert adds one snapshot row.
	Insert(ctx context.Context, snap *domain.MetricSnapshot) error

	// GetByInstanceID retrieves snapshots for an instance, ordered by
	// created_at ASC.
	GetByInstanceID(ctx context.Context, instanceID string) ([]*domain.MetricSnapshot, error)
}
