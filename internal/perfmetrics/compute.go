// Package perfmetrics computes performance metrics from an ordered trade
// series. All functions are pure and total: every input, including an empty
// series, yields a defined numeric result. Profit factor is the single
// metric allowed to be +Inf; nothing here ever returns NaN.
package perfmetrics

import (
	"encoding/json"
	"math"
	"sort"

	"strategy-verdict-lab/internal/domain"
)

// AnnualizationFactor converts per-trade statistics to annualized figures,
// assuming roughly daily trading frequency.
const AnnualizationFactor = 252.0

// Summary holds the metric set exposed by the track-record API.
type Summary struct {
	SharpeRatio        float64 `json:"sharpeRatio"`
	SortinoRatio       float64 `json:"sortinoRatio"`
	CalmarRatio        float64 `json:"calmarRatio"`
	ProfitFactor       float64 `json:"profitFactor"`
	DrawdownDuration   int     `json:"drawdownDuration"`   // trades spent below running peak
	DrawdownDurationMs int64   `json:"drawdownDurationMs"` // wall time of the same span
	TradeCount         int     `json:"tradeCount"`
}

// summaryAlias strips the marshal methods so the remaining fields encode
// normally.
type summaryAlias Summary

// MarshalJSON encodes the profit factor's +Inf edge case as the string
// "Infinity"; encoding/json has no representation for infinities and would
// fail the whole document otherwise.
func (s Summary) MarshalJSON() ([]byte, error) {
	pf := any(s.ProfitFactor)
	if math.IsInf(s.ProfitFactor, 1) {
		pf = "Infinity"
	}
	return json.Marshal(struct {
		summaryAlias
		ProfitFactor any `json:"profitFactor"`
	}{summaryAlias(s), pf})
}

// UnmarshalJSON accepts both the numeric and the "Infinity" wire forms.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var aux struct {
		summaryAlias
		ProfitFactor json.RawMessage `json:"profitFactor"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Summary(aux.summaryAlias)
	if len(aux.ProfitFactor) == 0 {
		return nil
	}
	if string(aux.ProfitFactor) == `"Infinity"` {
		s.ProfitFactor = math.Inf(1)
		return nil
	}
	return json.Unmarshal(aux.ProfitFactor, &s.ProfitFactor)
}

// Compute calculates all metrics from the trade series. When closedOnly is
// set, open trades are excluded. Trades are sorted by entry time before
// order-dependent metrics are computed.
func Compute(trades []domain.Trade, closedOnly bool) Summary {
	filtered := make([]domain.Trade, 0, len(trades))
	for i := range trades {
		if closedOnly && !trades[i].Closed() {
			continue
		}
		filtered = append(filtered, trades[i])
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].EntryTime < filtered[j].EntryTime
	})

	pnls := make([]float64, len(filtered))
	for i := range filtered {
		pnls[i] = filtered[i].PnL
	}

	ddTrades, ddMs := drawdownDuration(filtered, pnls)

	return Summary{
		SharpeRatio:        sharpe(pnls),
		SortinoRatio:       sortino(pnls),
		CalmarRatio:        calmar(pnls),
		ProfitFactor:       ProfitFactor(pnls),
		DrawdownDuration:   ddTrades,
		DrawdownDurationMs: ddMs,
		TradeCount:         len(filtered),
	}
}

// sharpe is mean return over its standard deviation, annualized.
func sharpe(pnls []float64) float64 {
	m := mean(pnls)
	sd := stddev(pnls, m)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(AnnualizationFactor)
}

// sortino penalizes only downside deviation: the denominator is computed over
// negative-return periods alone.
func sortino(pnls []float64) float64 {
	m := mean(pnls)

	var sumSq float64
	var downs int
	for _, p := range pnls {
		if p < 0 {
			sumSq += p * p
			downs++
		}
	}
	if downs == 0 {
		return 0
	}
	dd := math.Sqrt(sumSq / float64(downs))
	if dd == 0 {
		return 0
	}
	return m / dd * math.Sqrt(AnnualizationFactor)
}

// calmar is annualized return over max drawdown of the cumulative P&L curve.
func calmar(pnls []float64) float64 {
	maxDD := maxDrawdown(pnls)
	if maxDD == 0 {
		return 0
	}
	return mean(pnls) * AnnualizationFactor / maxDD
}

// ProfitFactor is grossProfit / |grossLoss|. Edge cases: +Inf when there are
// profits and no losses, 0 when there are only losses or no trades at all.
func ProfitFactor(pnls []float64) float64 {
	var grossProfit, grossLoss float64
	for _, p := range pnls {
		if p > 0 {
			grossProfit += p
		} else {
			grossLoss += p
		}
	}

	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / math.Abs(grossLoss)
}

// maxDrawdown is the worst peak-to-trough distance on the cumulative P&L
// curve, in money terms.
func maxDrawdown(pnls []float64) float64 {
	var cumulative, peak, maxDD float64
	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// drawdownDuration finds the longest contiguous span where equity stays below
// its running peak, returning the span length in trades and in wall time
// between the entry timestamps bounding it.
func drawdownDuration(trades []domain.Trade, pnls []float64) (int, int64) {
	var cumulative, peak float64
	var spanStart = -1
	var longest int
	var longestMs int64

	for i, p := range pnls {
		cumulative += p
		if cumulative >= peak {
			peak = cumulative
			spanStart = -1
			continue
		}
		if spanStart == -1 {
			spanStart = i
		}
		length := i - spanStart + 1
		if length > longest {
			longest = length
			longestMs = trades[i].EntryTime - trades[spanStart].EntryTime
		}
	}
	return longest, longestMs
}

// mean calculates the arithmetic mean. Empty input yields 0.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev calculates sample standard deviation (n-1 denominator). Fewer than
// two samples yield 0.
func stddev(vals []float64, mean float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range vals {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
