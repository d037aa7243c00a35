// Package walkforward classifies in-sample vs out-of-sample performance
// degradation into tiers. The classifier is pure: missing inputs degrade to
// NOT_EVALUATED, never to an error.
package walkforward

import (
	"strategy-verdict-lab/internal/domain"
)

// Tier is the walk-forward classification outcome.
type Tier string

const (
	// TierPass: degradation within the acceptable bound.
	TierPass Tier = "PASS"

	// TierModerateConclusive: moderate degradation with enough out-of-sample
	// trades to trust the measurement.
	TierModerateConclusive Tier = "MODERATE_CONCLUSIVE"

	// TierModerateInconclusive: moderate degradation but too few
	// out-of-sample trades to treat it as established.
	TierModerateInconclusive Tier = "MODERATE_INCONCLUSIVE"

	// TierExtreme: degradation past the extreme bound; disqualifying
	// regardless of sample size.
	TierExtreme Tier = "EXTREME"

	// TierNotEvaluated: no degradation figure available.
	TierNotEvaluated Tier = "NOT_EVALUATED"
)

// Severity orders tiers by how strongly they count against deployability.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityModerate
	SeverityExtreme
)

// Input carries the walk-forward signals. Nil fields mean not supplied.
type Input struct {
	DegradationPct *float64
	OosSampleSize  *int
}

// Result is the classification with its reason code, if any.
type Result struct {
	Tier       Tier
	ReasonCode string
	Severity   Severity
}

// DeriveDegradation computes the degradation percentage from an
// in-sample/out-of-sample Sharpe pair. A non-positive in-sample Sharpe
// carries no baseline to degrade from, so no figure is derived.
func DeriveDegradation(inSampleSharpe, oosSharpe float64) *float64 {
	if inSampleSharpe <= 0 {
		return nil
	}
	d := (inSampleSharpe - oosSharpe) / inSampleSharpe * 100
	if d < 0 {
		d = 0
	}
	return &d
}

// Classify maps degradation and out-of-sample sample size onto a tier, given
// the active thresholds.
func Classify(in Input, cfg domain.ThresholdsConfig) Result {
	if in.DegradationPct == nil {
		return Result{Tier: TierNotEvaluated}
	}
	d := *in.DegradationPct

	switch {
	case d > cfg.ExtremeSharpeDegradationPct:
		return Result{
			Tier:       TierExtreme,
			ReasonCode: domain.ReasonWalkForwardDegradationExtreme,
			Severity:   SeverityExtreme,
		}
	case d > cfg.MaxSharpeDegradationPct:
		if in.OosSampleSize != nil && *in.OosSampleSize >= cfg.MinOosTradeCount {
			return Result{
				Tier:       TierModerateConclusive,
				ReasonCode: domain.ReasonWalkForwardDegradationExtreme,
				Severity:   SeverityModerate,
			}
		}
		return Result{
			Tier:       TierModerateInconclusive,
			ReasonCode: domain.ReasonWalkForwardFlaggedInconclusive,
			Severity:   SeverityModerate,
		}
	default:
		return Result{Tier: TierPass}
	}
}
