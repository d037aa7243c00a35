package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Insert adds a new checkpoint. Returns ErrDuplicateKey if the
// (instance_id, last_sequence) pair exists.
func (s *CheckpointStore) Insert(ctx context.Context, c *domain.Checkpoint) error {
	if c == nil || c.InstanceID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO chain_checkpoints (
			instance_id, hmac, first_sequence, last_sequence, last_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		c.InstanceID,
		c.HMAC,
		c.FirstSequence,
		c.LastSequence,
		c.LastHash,
		c.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// GetByInstanceID retrieves all checkpoints ordered by last_sequence ASC.
func (s *CheckpointStore) GetByInstanceID(ctx context.Context, instanceID string) ([]*domain.Checkpoint, error) {
	query := `
		SELECT instance_id, hmac, first_sequence, last_sequence, last_hash, created_at
		FROM chain_checkpoints
		WHERE instance_id = $1
		ORDER BY last_sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get checkpoints: %w", err)
	}
	defer rows.Close()

	var result []*domain.Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return result, nil
}

// Latest retrieves the checkpoint with the highest last_sequence.
func (s *CheckpointStore) Latest(ctx context.Context, instanceID string) (*domain.Checkpoint, error) {
	query := `
		SELECT instance_id, hmac, first_sequence, last_sequence, last_hash, created_at
		FROM chain_checkpoints
		WHERE instance_id = $1
		ORDER BY last_sequence DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, instanceID)
	c, err := scanCheckpoint(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest checkpoint: %w", err)
	}
	return c, nil
}

func scanCheckpoint(row pgx.Row) (*domain.Checkpoint, error) {
	var c domain.Checkpoint
	err := row.Scan(
		&c.InstanceID,
		&c.HMAC,
		&c.FirstSequence,
		&c.LastSequence,
		&c.LastHash,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
