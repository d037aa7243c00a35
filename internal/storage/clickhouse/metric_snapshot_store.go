package clickhouse

import (
	"context"
	"fmt"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// MetricSnapshotStore implements storage.MetricSnapshotStore using ClickHouse.
type MetricSnapshotStore struct {
	conn *Conn
}

// NewMetricSnapshotStore creates a new MetricSnapshotStore.
func NewMetricSnapshotStore(conn *Conn) *MetricSnapshotStore {
	return &MetricSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricSnapshotStore = (*MetricSnapshotStore)(nil)

// Insert adds one snapshot row.
func (s *MetricSnapshotStore) Insert(ctx context.Context, snap *domain.MetricSnapshot) error {
	if snap == nil || snap.InstanceID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO metric_snapshots (
			instance_id, sharpe_ratio, sortino_ratio, calmar_ratio,
			profit_factor, drawdown_duration, trade_count, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		snap.InstanceID,
		snap.SharpeRatio,
		snap.SortinoRatio,
		snap.CalmarRatio,
		snap.ProfitFactor,
		uint32(snap.DrawdownDuration),
		uint32(snap.TradeCount),
		uint64(snap.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByInstanceID retrieves snapshots ordered by created_at ASC.
func (s *MetricSnapshotStore) GetByInstanceID(ctx context.Context, instanceID string) ([]*domain.MetricSnapshot, error) {
	query := `
		SELECT
			instance_id, sharpe_ratio, sortino_ratio, calmar_ratio,
			profit_factor, drawdown_duration, trade_count, created_at
		FROM metric_snapshots
		WHERE instance_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.conn.Query(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get metric snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.MetricSnapshot
	for rows.Next() {
		var snap domain.MetricSnapshot
		var drawdownDuration, tradeCount uint32
		var createdAt uint64

		err := rows.Scan(
			&snap.InstanceID,
			&snap.SharpeRatio,
			&snap.SortinoRatio,
			&snap.CalmarRatio,
			&snap.ProfitFactor,
			&drawdownDuration,
			&tradeCount,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric snapshot: %w", err)
		}

		snap.DrawdownDuration = int(drawdownDuration)
		snap.TradeCount = int(tradeCount)
		snap.CreatedAt = int64(createdAt)
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric snapshots: %w", err)
	}
	return result, nil
}
