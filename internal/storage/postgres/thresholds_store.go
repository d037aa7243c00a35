package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// ThresholdsStore implements storage.ThresholdsStore using PostgreSQL.
// Published versions are immutable rows; the newest published_at wins as the
// active version.
type ThresholdsStore struct {
	pool *Pool
}

// NewThresholdsStore creates a new ThresholdsStore.
func NewThresholdsStore(pool *Pool) *ThresholdsStore {
	return &ThresholdsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ThresholdsStore = (*ThresholdsStore)(nil)

// Insert adds a new thresholds version. Returns ErrDuplicateKey if
// config_version exists.
func (s *ThresholdsStore) Insert(ctx context.Context, cfg *domain.ThresholdsConfig) error {
	if cfg == nil || cfg.ConfigVersion == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO verdict_thresholds (
			config_version, thresholds_hash,
			min_trade_count, min_oos_trade_count,
			ready_confidence_threshold, not_deployable_threshold,
			max_sharpe_degradation_pct, extreme_sharpe_degradation_pct,
			ruin_probability_ceiling, monte_carlo_iterations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		cfg.ConfigVersion,
		cfg.ThresholdsHash,
		cfg.MinTradeCount,
		cfg.MinOosTradeCount,
		cfg.ReadyConfidenceThreshold,
		cfg.NotDeployableThreshold,
		cfg.MaxSharpeDegradationPct,
		cfg.ExtremeSharpeDegradationPct,
		cfg.RuinProbabilityCeiling,
		cfg.MonteCarloIterations,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert thresholds: %w", err)
	}
	return nil
}

// GetByVersion retrieves one version. Returns ErrNotFound if not exists.
func (s *ThresholdsStore) GetByVersion(ctx context.Context, configVersion string) (*domain.ThresholdsConfig, error) {
	query := selectThresholds + ` WHERE config_version = $1`

	row := s.pool.QueryRow(ctx, query, configVersion)
	cfg, err := scanThresholds(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get thresholds by version: %w", err)
	}
	return cfg, nil
}

// GetActive retrieves the most recently published version.
func (s *ThresholdsStore) GetActive(ctx context.Context) (*domain.ThresholdsConfig, error) {
	query := selectThresholds + ` ORDER BY published_at DESC LIMIT 1`

	row := s.pool.QueryRow(ctx, query)
	cfg, err := scanThresholds(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active thresholds: %w", err)
	}
	return cfg, nil
}

const selectThresholds = `
	SELECT config_version, thresholds_hash,
	       min_trade_count, min_oos_trade_count,
	       ready_confidence_threshold, not_deployable_threshold,
	       max_sharpe_degradation_pct, extreme_sharpe_degradation_pct,
	       ruin_probability_ceiling, monte_carlo_iterations
	FROM verdict_thresholds`

func scanThresholds(row pgx.Row) (*domain.ThresholdsConfig, error) {
	var cfg domain.ThresholdsConfig
	err := row.Scan(
		&cfg.ConfigVersion,
		&cfg.ThresholdsHash,
		&cfg.MinTradeCount,
		&cfg.MinOosTradeCount,
		&cfg.ReadyConfidenceThreshold,
		&cfg.NotDeployableThreshold,
		&cfg.MaxSharpeDegradationPct,
		&cfg.ExtremeSharpeDegradationPct,
		&cfg.RuinProbabilityCeiling,
		&cfg.MonteCarloIterations,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
