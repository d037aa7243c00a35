package perfmetrics

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"strategy-verdict-lab/internal/domain"
)

func closed(t int64) *int64 { return &t }

func TestProfitFactor_AllWinning(t *testing.T) {
	pf := ProfitFactor([]float64{10, 20, 5})
	if !math.IsInf(pf, 1) {
		t.Errorf("expected +Inf, got %f", pf)
	}
}

func TestProfitFactor_AllLosing(t *testing.T) {
	pf := ProfitFactor([]float64{-10, -20})
	if pf != 0 {
		t.Errorf("expected 0, got %f", pf)
	}
}

func TestProfitFactor_Empty(t *testing.T) {
	pf := ProfitFactor(nil)
	if pf != 0 {
		t.Errorf("expected 0, got %f", pf)
	}
	if math.IsNaN(pf) {
		t.Error("profit factor must never be NaN")
	}
}

func TestProfitFactor_Mixed(t *testing.T) {
	// grossProfit=30, grossLoss=-15 → 2.0
	pf := ProfitFactor([]float64{10, -5, 20, -10})
	if math.Abs(pf-2.0) > 1e-9 {
		t.Errorf("expected 2.0, got %f", pf)
	}
}

func TestCompute_EmptySeries(t *testing.T) {
	s := Compute(nil, true)

	if s.SharpeRatio != 0 || s.SortinoRatio != 0 || s.CalmarRatio != 0 {
		t.Errorf("expected zero ratios for empty series, got %+v", s)
	}
	if s.ProfitFactor != 0 {
		t.Errorf("expected zero profit factor, got %f", s.ProfitFactor)
	}
	if s.DrawdownDuration != 0 {
		t.Errorf("expected zero drawdown duration, got %d", s.DrawdownDuration)
	}
}

func TestCompute_NeverNaN(t *testing.T) {
	cases := [][]domain.Trade{
		nil,
		{{Pair: "EURUSD", PnL: 100, EntryTime: 1, CloseTime: closed(2)}},
		{
			{Pair: "EURUSD", PnL: 100, EntryTime: 1, CloseTime: closed(2)},
			{Pair: "EURUSD", PnL: 100, EntryTime: 3, CloseTime: closed(4)},
		},
	}

	for i, trades := range cases {
		s := Compute(trades, true)
		for name, v := range map[string]float64{
			"sharpe":  s.SharpeRatio,
			"sortino": s.SortinoRatio,
			"calmar":  s.CalmarRatio,
		} {
			if math.IsNaN(v) {
				t.Errorf("case %d: %s is NaN", i, name)
			}
		}
	}
}

func TestCompute_ClosedOnlyFilter(t *testing.T) {
	trades := []domain.Trade{
		{Pair: "EURUSD", PnL: 100, EntryTime: 1, CloseTime: closed(2)},
		{Pair: "EURUSD", PnL: -50, EntryTime: 3}, // open, excluded
		{Pair: "EURUSD", PnL: 100, EntryTime: 5, CloseTime: closed(6)},
	}

	s := Compute(trades, true)
	if s.TradeCount != 2 {
		t.Errorf("expected 2 closed trades, got %d", s.TradeCount)
	}
	if !math.IsInf(s.ProfitFactor, 1) {
		t.Errorf("open losing trade leaked into profit factor: %f", s.ProfitFactor)
	}
}

func TestDrawdownDuration_LongestSpan(t *testing.T) {
	// Equity: 10, 5, 7, 12, 8, 6, 9 → below-peak spans are trades 1-2
	// (length 2) and trades 4-6 (length 3).
	trades := []domain.Trade{
		{PnL: 10, EntryTime: 1000, CloseTime: closed(1001)},
		{PnL: -5, EntryTime: 2000, CloseTime: closed(2001)},
		{PnL: 2, EntryTime: 3000, CloseTime: closed(3001)},
		{PnL: 5, EntryTime: 4000, CloseTime: closed(4001)},
		{PnL: -4, EntryTime: 5000, CloseTime: closed(5001)},
		{PnL: -2, EntryTime: 6000, CloseTime: closed(6001)},
		{PnL: 3, EntryTime: 7000, CloseTime: closed(7001)},
	}

	s := Compute(trades, true)
	if s.DrawdownDuration != 3 {
		t.Errorf("expected longest drawdown span of 3 trades, got %d", s.DrawdownDuration)
	}
	if s.DrawdownDurationMs != 2000 {
		t.Errorf("expected 2000ms span, got %d", s.DrawdownDurationMs)
	}
}

func TestSortino_UsesDownsideOnly(t *testing.T) {
	// One downside period of -10: downside deviation = 10, mean = 2.5.
	pnls := []float64{10, -10, 5, 5}
	got := sortino(pnls)
	want := 2.5 / 10.0 * math.Sqrt(AnnualizationFactor)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestSummaryJSON_InfiniteProfitFactorRoundTrip(t *testing.T) {
	s := Summary{ProfitFactor: math.Inf(1), TradeCount: 3}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"profitFactor":"Infinity"`) {
		t.Errorf("expected Infinity wire form, got %s", data)
	}

	var back Summary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsInf(back.ProfitFactor, 1) {
		t.Errorf("expected +Inf after round trip, got %f", back.ProfitFactor)
	}
	if back.TradeCount != 3 {
		t.Errorf("sibling field lost in round trip: %d", back.TradeCount)
	}
}

func TestSummaryJSON_FiniteProfitFactorStaysNumeric(t *testing.T) {
	s := Summary{ProfitFactor: 1.5}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"profitFactor":1.5`) {
		t.Errorf("expected numeric wire form, got %s", data)
	}

	var back Summary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ProfitFactor != 1.5 {
		t.Errorf("expected 1.5, got %f", back.ProfitFactor)
	}
}
