// Package verdict combines walk-forward, Monte Carlo and composite robustness
// signals into a single deployability verdict. Combine is a pure function:
// identical inputs always yield an identical result, which is what makes the
// audit trail reproducible.
package verdict

import (
	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/montecarlo"
	"strategy-verdict-lab/internal/walkforward"
)

// Inputs gathers everything the combiner looks at. Optional signals are
// carried as NOT_EVALUATED results or nil pointers; absence is degraded to a
// warning, never an error.
type Inputs struct {
	StrategyID      string
	StrategyVersion string
	SampleSize      int
	Composite       *float64
	WalkForward     walkforward.Result
	Degradation     *float64
	OosSampleSize   *int
	MonteCarlo      montecarlo.Result
}

// Combine applies the classification rules in fixed order:
//
//  1. sampleSize below minTradeCount is disqualifying on its own.
//  2. Extreme walk-forward degradation, a Monte Carlo ruin ceiling breach, or
//     a composite at or below the floor → NOT_DEPLOYABLE.
//  3. Composite at or above the readiness bar with no outstanding flags → READY.
//  4. Everything else → UNCERTAIN.
func Combine(in Inputs, cfg domain.ThresholdsConfig) domain.VerdictResult {
	res := domain.VerdictResult{
		StrategyID:      in.StrategyID,
		StrategyVersion: in.StrategyVersion,
		ReasonCodes:     []string{},
		Warnings:        []string{},
		ThresholdsUsed:  cfg,
		Scores: domain.Scores{
			Composite:                 in.Composite,
			WalkForwardDegradationPct: in.Degradation,
			WalkForwardOosSampleSize:  in.OosSampleSize,
			WalkForwardTier:           string(in.WalkForward.Tier),
			MonteCarloIterationsRun:   in.MonteCarlo.IterationsRun,
			SampleSize:                in.SampleSize,
		},
	}
	if in.MonteCarlo.Evaluated {
		p := in.MonteCarlo.RuinProbability
		res.Scores.MonteCarloRuinProbability = &p
	}

	if in.WalkForward.Tier == walkforward.TierNotEvaluated {
		res.Warnings = append(res.Warnings, "no walk-forward data supplied")
	}
	if in.MonteCarlo.Warning != "" {
		res.Warnings = append(res.Warnings, in.MonteCarlo.Warning)
	}
	if in.Composite == nil {
		res.Warnings = append(res.Warnings, "no composite robustness score supplied")
	}

	// Rule 1: sample floor overrides everything.
	if in.SampleSize < cfg.MinTradeCount {
		res.Verdict = domain.VerdictNotDeployable
		res.ReasonCodes = append(res.ReasonCodes, domain.ReasonInsufficientSample)
		return res
	}

	d1Extreme := in.WalkForward.Tier == walkforward.TierExtreme
	d1Flagged := in.WalkForward.Severity == walkforward.SeverityModerate
	d2Breach := in.MonteCarlo.Evaluated && in.MonteCarlo.RuinProbability > cfg.RuinProbabilityCeiling
	compositeFloor := in.Composite != nil && *in.Composite <= cfg.NotDeployableThreshold

	// Rule 2: any disqualifier.
	if d1Extreme || d2Breach || compositeFloor {
		res.Verdict = domain.VerdictNotDeployable
		if in.WalkForward.ReasonCode != "" && (d1Extreme || d1Flagged) {
			res.ReasonCodes = append(res.ReasonCodes, in.WalkForward.ReasonCode)
		}
		if d2Breach {
			res.ReasonCodes = append(res.ReasonCodes, domain.ReasonMonteCarloRuin)
		}
		if compositeFloor {
			res.ReasonCodes = append(res.ReasonCodes, domain.ReasonLowCompositeScore)
		}
		return res
	}

	// Rule 3: READY requires a composite at the bar and a clean slate. A
	// missing composite can never be READY.
	if in.Composite != nil && *in.Composite >= cfg.ReadyConfidenceThreshold && !d1Flagged && !d2Breach {
		res.Verdict = domain.VerdictReady
		return res
	}

	// Rule 4.
	res.Verdict = domain.VerdictUncertain
	if in.WalkForward.ReasonCode != "" {
		res.ReasonCodes = append(res.ReasonCodes, in.WalkForward.ReasonCode)
	}
	return res
}
