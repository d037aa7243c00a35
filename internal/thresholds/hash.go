package thresholds

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"strategy-verdict-lab/internal/canonical"
	"strategy-verdict-lab/internal/domain"
)

// Hash computes the sha256 hex digest over the canonicalized numeric fields
// of a thresholds configuration. The hash pins the exact bar a verdict was
// computed against; it is always recomputed, never trusted from storage.
func Hash(cfg domain.ThresholdsConfig) string {
	fields := map[string]string{
		"minTradeCount":               strconv.Itoa(cfg.MinTradeCount),
		"minOosTradeCount":            strconv.Itoa(cfg.MinOosTradeCount),
		"readyConfidenceThreshold":    formatFloat(cfg.ReadyConfidenceThreshold),
		"notDeployableThreshold":      formatFloat(cfg.NotDeployableThreshold),
		"maxSharpeDegradationPct":     formatFloat(cfg.MaxSharpeDegradationPct),
		"extremeSharpeDegradationPct": formatFloat(cfg.ExtremeSharpeDegradationPct),
		"ruinProbabilityCeiling":      formatFloat(cfg.RuinProbabilityCeiling),
		"monteCarloIterations":        strconv.Itoa(cfg.MonteCarloIterations),
	}

	// Values are pre-formatted strings, so float encoding never depends on
	// the JSON library.
	raw, err := canonical.Marshal(fields)
	if err != nil {
		// A map[string]string cannot fail to marshal.
		panic("thresholds: canonical marshal: " + err.Error())
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
