package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// genesisHash mirrors the chain package's genesis constant for the head CAS.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// EventStore implements storage.EventStore using PostgreSQL. The conditional
// append pushes the head compare-and-swap into a single guarded INSERT, so
// concurrent writers on one instance serialize on the database.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Append adds the next event conditionally on the head hash. Returns
// ErrConflict when the observed head is stale.
func (s *EventStore) Append(ctx context.Context, e *domain.TrackRecordEvent, expectedPrevHash string) error {
	if e == nil || e.InstanceID == "" || e.Hash == "" {
		return storage.ErrInvalidInput
	}

	// The guard subquery re-reads the current head inside the statement:
	// the insert happens only if the head still matches what the caller saw.
	query := `
		INSERT INTO track_record_events (
			instance_id, sequence, timestamp_ms, event_type, payload, prev_hash, hash
		)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE COALESCE(
			(SELECT hash FROM track_record_events
			 WHERE instance_id = $1
			 ORDER BY sequence DESC LIMIT 1),
			$8
		) = $6
		AND $2 = COALESCE(
			(SELECT sequence + 1 FROM track_record_events
			 WHERE instance_id = $1
			 ORDER BY sequence DESC LIMIT 1),
			0
		)
	`

	tag, err := s.pool.Exec(ctx, query,
		e.InstanceID,
		e.Sequence,
		e.Timestamp,
		e.EventType,
		[]byte(e.Payload),
		e.PrevHash,
		e.Hash,
		genesisHash,
	)
	if err != nil {
		// A unique violation on (instance_id, sequence) is a lost race.
		if isDuplicateKeyError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("append event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// Head retrieves the highest-sequence event. Returns ErrNotFound for an
// empty chain.
func (s *EventStore) Head(ctx context.Context, instanceID string) (*domain.TrackRecordEvent, error) {
	query := `
		SELECT instance_id, sequence, timestamp_ms, event_type, payload, prev_hash, hash
		FROM track_record_events
		WHERE instance_id = $1
		ORDER BY sequence DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, instanceID)
	e, err := scanEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get head: %w", err)
	}
	return e, nil
}

// GetRange retrieves events with sequence in [first, last], ordered ASC.
func (s *EventStore) GetRange(ctx context.Context, instanceID string, first, last int64) ([]*domain.TrackRecordEvent, error) {
	query := `
		SELECT instance_id, sequence, timestamp_ms, event_type, payload, prev_hash, hash
		FROM track_record_events
		WHERE instance_id = $1 AND sequence >= $2 AND sequence <= $3
		ORDER BY sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, instanceID, first, last)
	if err != nil {
		return nil, fmt.Errorf("get event range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MaxSequence returns the highest sequence, or -1 for an empty chain.
func (s *EventStore) MaxSequence(ctx context.Context, instanceID string) (int64, error) {
	query := `
		SELECT COALESCE(MAX(sequence), -1)
		FROM track_record_events
		WHERE instance_id = $1
	`

	var max int64
	if err := s.pool.QueryRow(ctx, query, instanceID).Scan(&max); err != nil {
		return 0, fmt.Errorf("get max sequence: %w", err)
	}
	return max, nil
}

func scanEvent(row pgx.Row) (*domain.TrackRecordEvent, error) {
	var e domain.TrackRecordEvent
	var payload []byte
	err := row.Scan(
		&e.InstanceID,
		&e.Sequence,
		&e.Timestamp,
		&e.EventType,
		&payload,
		&e.PrevHash,
		&e.Hash,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]*domain.TrackRecordEvent, error) {
	var result []*domain.TrackRecordEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}
