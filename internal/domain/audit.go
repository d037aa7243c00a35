package domain

// VerdictAuditRow is the append-only record of one computed verdict, stored
// for reproducibility: re-running with the same inputs and thresholdsHash must
// yield the same verdict.
type VerdictAuditRow struct {
	RunID           string
	StrategyID      string
	StrategyVersion string
	Verdict         Verdict
	ReasonCodes     []string
	CompositeScore  *float64
	DegradationPct  *float64
	RuinProbability *float64
	SampleSize      int
	ThresholdsHash  string
	ConfigSource    ConfigSource
	MonteCarloSeed  uint64
	CreatedAt       int64 // ms
}

// MetricSnapshot is one computed set of track-record performance metrics for
// a live instance.
type MetricSnapshot struct {
	InstanceID       string  `json:"instanceId"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	SortinoRatio     float64 `json:"sortinoRatio"`
	CalmarRatio      float64 `json:"calmarRatio"`
	ProfitFactor     float64 `json:"profitFactor"`
	DrawdownDuration int     `json:"drawdownDuration"` // trades below running peak
	TradeCount       int     `json:"tradeCount"`
	CreatedAt        int64   `json:"createdAt"` // ms
}
