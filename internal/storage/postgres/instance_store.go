package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// InstanceStore implements storage.InstanceStore using PostgreSQL.
type InstanceStore struct {
	pool *Pool
}

// NewInstanceStore creates a new InstanceStore.
func NewInstanceStore(pool *Pool) *InstanceStore {
	return &InstanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InstanceStore = (*InstanceStore)(nil)

// Insert adds a new instance. Returns ErrDuplicateKey if instance_id exists.
func (s *InstanceStore) Insert(ctx context.Context, inst *domain.Instance) error {
	if inst == nil || inst.InstanceID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO instances (
			instance_id, ea_name, mode, strategy_id, strategy_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		inst.InstanceID,
		inst.EAName,
		inst.Mode,
		inst.StrategyID,
		inst.StrategyVersion,
		inst.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// GetByID retrieves an instance by its ID. Returns ErrNotFound if not exists.
func (s *InstanceStore) GetByID(ctx context.Context, instanceID string) (*domain.Instance, error) {
	query := `
		SELECT instance_id, ea_name, mode, strategy_id, strategy_version, created_at
		FROM instances
		WHERE instance_id = $1
	`

	row := s.pool.QueryRow(ctx, query, instanceID)
	inst, err := scanInstance(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get instance by id: %w", err)
	}
	return inst, nil
}

// List retrieves all registered instances ordered by created_at ASC.
func (s *InstanceStore) List(ctx context.Context) ([]*domain.Instance, error) {
	query := `
		SELECT instance_id, ea_name, mode, strategy_id, strategy_version, created_at
		FROM instances
		ORDER BY created_at ASC, instance_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var result []*domain.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		result = append(result, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return result, nil
}

func scanInstance(row pgx.Row) (*domain.Instance, error) {
	var inst domain.Instance
	err := row.Scan(
		&inst.InstanceID,
		&inst.EAName,
		&inst.Mode,
		&inst.StrategyID,
		&inst.StrategyVersion,
		&inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
