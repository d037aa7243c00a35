package clickhouse

import (
	"context"
	"fmt"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// VerdictAuditStore implements storage.VerdictAuditStore using ClickHouse.
// The audit trail is append-only by design, matching MergeTree semantics.
type VerdictAuditStore struct {
	conn *Conn
}

// NewVerdictAuditStore creates a new VerdictAuditStore.
func NewVerdictAuditStore(conn *Conn) *VerdictAuditStore {
	return &VerdictAuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.VerdictAuditStore = (*VerdictAuditStore)(nil)

// Insert adds one audit row.
func (s *VerdictAuditStore) Insert(ctx context.Context, row *domain.VerdictAuditRow) error {
	if row == nil || row.RunID == "" || row.StrategyID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO verdict_audit (
			run_id, strategy_id, strategy_version, verdict, reason_codes,
			composite_score, degradation_pct, ruin_probability,
			sample_size, thresholds_hash, config_source, monte_carlo_seed, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		row.RunID,
		row.StrategyID,
		row.StrategyVersion,
		string(row.Verdict),
		row.ReasonCodes,
		row.CompositeScore,
		row.DegradationPct,
		row.RuinProbability,
		uint32(row.SampleSize),
		row.ThresholdsHash,
		string(row.ConfigSource),
		row.MonteCarloSeed,
		uint64(row.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByStrategy retrieves audit rows for a strategy version, ordered by
// created_at ASC.
func (s *VerdictAuditStore) GetByStrategy(ctx context.Context, strategyID, strategyVersion string) ([]*domain.VerdictAuditRow, error) {
	query := `
		SELECT
			run_id, strategy_id, strategy_version, verdict, reason_codes,
			composite_score, degradation_pct, ruin_probability,
			sample_size, thresholds_hash, config_source, monte_carlo_seed, created_at
		FROM verdict_audit
		WHERE strategy_id = ? AND strategy_version = ?
		ORDER BY created_at ASC
	`

	rows, err := s.conn.Query(ctx, query, strategyID, strategyVersion)
	if err != nil {
		return nil, fmt.Errorf("get audit rows: %w", err)
	}
	defer rows.Close()

	var result []*domain.VerdictAuditRow
	for rows.Next() {
		var row domain.VerdictAuditRow
		var verdict, configSource string
		var sampleSize uint32
		var createdAt uint64

		err := rows.Scan(
			&row.RunID,
			&row.StrategyID,
			&row.StrategyVersion,
			&verdict,
			&row.ReasonCodes,
			&row.CompositeScore,
			&row.DegradationPct,
			&row.RuinProbability,
			&sampleSize,
			&row.ThresholdsHash,
			&configSource,
			&row.MonteCarloSeed,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}

		row.Verdict = domain.Verdict(verdict)
		row.ConfigSource = domain.ConfigSource(configSource)
		row.SampleSize = int(sampleSize)
		row.CreatedAt = int64(createdAt)
		result = append(result, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return result, nil
}
