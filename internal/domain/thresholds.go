package domain

// ThresholdsConfig is a versioned set of numeric gates applied by the verdict
// engine. A published configVersion is immutable; changing any value requires
// a new version. ThresholdsHash pins the exact bar applied for audit
// reproducibility and is recomputed from the numeric fields, never trusted
// from storage.
type ThresholdsConfig struct {
	ConfigVersion  string `json:"configVersion"`
	ThresholdsHash string `json:"thresholdsHash"`

	// Sample gates
	MinTradeCount    int `json:"minTradeCount"`    // below this the verdict is NOT_DEPLOYABLE outright
	MinOosTradeCount int `json:"minOosTradeCount"` // out-of-sample evidence floor for walk-forward tiers

	// Composite score gates
	ReadyConfidenceThreshold float64 `json:"readyConfidenceThreshold"` // composite >= this can be READY
	NotDeployableThreshold   float64 `json:"notDeployableThreshold"`   // composite <= this is NOT_DEPLOYABLE

	// Walk-forward degradation gates (percent)
	MaxSharpeDegradationPct     float64 `json:"maxSharpeDegradationPct"`     // above this is at least moderate
	ExtremeSharpeDegradationPct float64 `json:"extremeSharpeDegradationPct"` // above this is extreme

	// Monte Carlo gates
	RuinProbabilityCeiling float64 `json:"ruinProbabilityCeiling"`
	MonteCarloIterations   int     `json:"monteCarloIterations"`
}

// ConfigSource identifies where the active thresholds came from.
type ConfigSource string

const (
	// ConfigSourceDB means the thresholds were loaded from the store.
	ConfigSourceDB ConfigSource = "db"

	// ConfigSourceFallback means the store was unavailable and the
	// compiled-in defaults were used.
	ConfigSourceFallback ConfigSource = "fallback"

	// ConfigSourceMissing means no thresholds could be resolved; the caller
	// must refuse to compute a verdict (fail closed).
	ConfigSourceMissing ConfigSource = "missing"
)
