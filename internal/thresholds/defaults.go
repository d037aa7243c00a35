package thresholds

import "strategy-verdict-lab/internal/domain"

// DefaultConfigVersion is the compiled-in fallback version identifier.
const DefaultConfigVersion = "v1"

// DefaultThresholds returns the compiled-in fallback configuration used when
// the store is unreachable. Published store versions take precedence.
func DefaultThresholds() domain.ThresholdsConfig {
	cfg := domain.ThresholdsConfig{
		ConfigVersion:               DefaultConfigVersion,
		MinTradeCount:               30,
		MinOosTradeCount:            30,
		ReadyConfidenceThreshold:    0.7,
		NotDeployableThreshold:      0.3,
		MaxSharpeDegradationPct:     20,
		ExtremeSharpeDegradationPct: 40,
		RuinProbabilityCeiling:      0.05,
		MonteCarloIterations:        1000,
	}
	cfg.ThresholdsHash = Hash(cfg)
	return cfg
}
