package domain

// Verdict classifies a strategy's deployability.
type Verdict string

const (
	VerdictReady         Verdict = "READY"
	VerdictUncertain     Verdict = "UNCERTAIN"
	VerdictNotDeployable Verdict = "NOT_DEPLOYABLE"
)

// Reason codes attached to a verdict. Codes are stable identifiers consumed
// by downstream UIs and the audit trail.
const (
	ReasonInsufficientSample             = "INSUFFICIENT_SAMPLE"
	ReasonWalkForwardDegradationExtreme  = "WALK_FORWARD_DEGRADATION_EXTREME"
	ReasonWalkForwardFlaggedInconclusive = "WALK_FORWARD_FLAGGED_NOT_CONCLUSIVE"
	ReasonMonteCarloRuin                 = "MONTE_CARLO_RUIN"
	ReasonLowCompositeScore              = "LOW_COMPOSITE_SCORE"
)

// Scores carries the numeric inputs the verdict was computed from. Nil
// pointers mean the signal was not evaluated; absence is never an error.
type Scores struct {
	Composite                 *float64 `json:"composite,omitempty"`
	WalkForwardDegradationPct *float64 `json:"walkForwardDegradationPct,omitempty"`
	WalkForwardOosSampleSize  *int     `json:"walkForwardOosSampleSize,omitempty"`
	WalkForwardTier           string   `json:"walkForwardTier"`
	MonteCarloRuinProbability *float64 `json:"monteCarloRuinProbability,omitempty"`
	MonteCarloIterationsRun   int      `json:"monteCarloIterationsRun"`
	SampleSize                int      `json:"sampleSize"`
}

// VerdictResult is the complete outcome of one verdict computation. It is a
// pure function of its inputs: identical inputs always produce an identical
// result, which is what makes the audit trail reproducible.
type VerdictResult struct {
	StrategyID      string           `json:"strategyId"`
	StrategyVersion string           `json:"strategyVersion"`
	Verdict         Verdict          `json:"verdict"`
	ReasonCodes     []string         `json:"reasonCodes"`
	Scores          Scores           `json:"scores"`
	ThresholdsUsed  ThresholdsConfig `json:"thresholdsUsed"`
	Warnings        []string         `json:"warnings"`
}

// IntermediateResults is optional caller-supplied robustness data computed by
// an upstream backtest run. Missing fields degrade to NOT_EVALUATED, they
// never fail the request.
type IntermediateResults struct {
	RobustnessScores RobustnessScores `json:"robustnessScores"`
	SampleSize       int              `json:"sampleSize"`
}

// RobustnessScores groups the optional per-signal scores.
type RobustnessScores struct {
	Composite                 *float64 `json:"composite,omitempty"`
	WalkForwardDegradationPct *float64 `json:"walkForwardDegradationPct,omitempty"`
	WalkForwardOosSampleSize  *int     `json:"walkForwardOosSampleSize,omitempty"`
	MonteCarloRuinProbability *float64 `json:"monteCarloRuinProbability,omitempty"`
}
