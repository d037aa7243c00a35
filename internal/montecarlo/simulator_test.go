package montecarlo

import (
	"testing"
	"time"

	"strategy-verdict-lab/internal/thresholds"
)

func series(n int, pnl float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = pnl
	}
	return out
}

func TestDeriveSeed_Stable(t *testing.T) {
	a := DeriveSeed("strat-1", "1.0.0", "abc")
	b := DeriveSeed("strat-1", "1.0.0", "abc")
	if a != b {
		t.Fatalf("same inputs produced different seeds: %d vs %d", a, b)
	}
	if DeriveSeed("strat-2", "1.0.0", "abc") == a {
		t.Error("different strategy id must change the seed")
	}
	if DeriveSeed("strat-1", "1.0.1", "abc") == a {
		t.Error("different version must change the seed")
	}
	if DeriveSeed("strat-1", "1.0.0", "def") == a {
		t.Error("different thresholds hash must change the seed")
	}
}

func TestBlockSize(t *testing.T) {
	cases := []struct{ n, want int }{
		{0, 1}, {1, 1}, {2, 2}, {9, 3}, {10, 4}, {100, 10},
	}
	for _, c := range cases {
		if got := BlockSize(c.n); got != c.want {
			t.Errorf("BlockSize(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestRun_InsufficientSampleSkips(t *testing.T) {
	cfg := thresholds.DefaultThresholds()
	r := New().Run(series(10, 100), 42, cfg)

	if r.Evaluated {
		t.Fatal("expected NOT_EVALUATED below minTradeCount")
	}
	if r.Warning == "" {
		t.Error("expected a warning on skip")
	}
	if r.Seed != 42 {
		t.Errorf("seed must still be reported, got %d", r.Seed)
	}
}

func TestRun_AllWinningNeverRuins(t *testing.T) {
	cfg := thresholds.DefaultThresholds()
	r := New().Run(series(50, 100), 7, cfg)

	if !r.Evaluated {
		t.Fatal("expected evaluation")
	}
	if r.RuinProbability != 0 {
		t.Errorf("all-winning series must never ruin, got %f", r.RuinProbability)
	}
	if r.IterationsRun != cfg.MonteCarloIterations {
		t.Errorf("expected %d iterations, got %d", cfg.MonteCarloIterations, r.IterationsRun)
	}
}

func TestRun_CatastrophicSeriesAlwaysRuins(t *testing.T) {
	cfg := thresholds.DefaultThresholds()
	// Each trade loses 10% of the starting balance; the 50% floor is crossed
	// inside any resampled path.
	r := New(WithStartingBalance(10_000)).Run(series(60, -1_000), 7, cfg)

	if !r.Evaluated {
		t.Fatal("expected evaluation")
	}
	if r.RuinProbability != 1 {
		t.Errorf("expected certain ruin, got %f", r.RuinProbability)
	}
}

func TestRun_DeterministicAcrossRunsAndWorkerCounts(t *testing.T) {
	cfg := thresholds.DefaultThresholds()
	// Mixed series so the outcome is non-trivial.
	pnls := make([]float64, 60)
	for i := range pnls {
		if i%3 == 0 {
			pnls[i] = -900
		} else {
			pnls[i] = 350
		}
	}
	seed := DeriveSeed("strat-1", "1.0.0", "hash")

	first := New(WithWorkers(1)).Run(pnls, seed, cfg)
	for _, workers := range []int{1, 2, 8} {
		got := New(WithWorkers(workers)).Run(pnls, seed, cfg)
		if got.RuinProbability != first.RuinProbability || got.Ruins != first.Ruins {
			t.Errorf("workers=%d: got %f (%d ruins), want %f (%d ruins)",
				workers, got.RuinProbability, got.Ruins, first.RuinProbability, first.Ruins)
		}
		if got.IterationsRun != cfg.MonteCarloIterations {
			t.Errorf("workers=%d: iterations trimmed unexpectedly: %d", workers, got.IterationsRun)
		}
	}
}

func TestRun_SeedChangesOutcomeStream(t *testing.T) {
	cfg := thresholds.DefaultThresholds()
	cfg.MonteCarloIterations = 200
	pnls := make([]float64, 40)
	for i := range pnls {
		if i%2 == 0 {
			pnls[i] = -1_100
		} else {
			pnls[i] = 1_150
		}
	}

	a := New(WithWorkers(1)).Run(pnls, 1, cfg)
	b := New(WithWorkers(1)).Run(pnls, 1, cfg)
	if a.RuinProbability != b.RuinProbability {
		t.Errorf("same seed must reproduce exactly: %f vs %f", a.RuinProbability, b.RuinProbability)
	}
}

func TestRun_WallBudgetReportsActualCount(t *testing.T) {
	cfg := thresholds.DefaultThresholds()
	cfg.MonteCarloIterations = 10_000_000

	r := New(WithWallBudget(10 * time.Millisecond)).Run(series(50, 100), 3, cfg)
	if r.Evaluated && r.IterationsRun == cfg.MonteCarloIterations {
		t.Skip("machine completed the full run inside the budget")
	}
	if r.Evaluated && r.IterationsRun <= 0 {
		t.Errorf("trimmed run must report a positive iteration count, got %d", r.IterationsRun)
	}
}
