// Package montecarlo estimates ruin probability by block-bootstrap resampling
// of a closed-trade P&L sequence. Runs are exactly reproducible: the RNG seed
// is a pure function of the strategy identity and the active thresholds, and
// per-iteration seeding keeps parallel execution deterministic regardless of
// scheduling.
package montecarlo

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"strategy-verdict-lab/internal/domain"
)

const (
	// RuinFloorPct: ruin is declared when simulated equity drops to or below
	// this fraction of the starting balance. Fixed for thresholds version v1.
	RuinFloorPct = 0.5

	// DefaultStartingBalance used when the caller supplies none.
	DefaultStartingBalance = 10_000.0

	// DefaultWallBudget caps simulation time; past it, remaining iterations
	// are abandoned and the actual count is reported.
	DefaultWallBudget = 3 * time.Second

	// seedStride decorrelates per-iteration RNG streams (64-bit golden ratio).
	seedStride = 0x9E3779B97F4A7C15
)

// Result is the simulation outcome.
type Result struct {
	Evaluated       bool
	RuinProbability float64
	IterationsRun   int
	Ruins           int
	Seed            uint64
	Warning         string
}

// Simulator runs the bootstrap. Zero value is not usable; construct with New.
type Simulator struct {
	startingBalance float64
	wallBudget      time.Duration
	workers         int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithStartingBalance overrides the simulated account's starting equity.
func WithStartingBalance(b float64) Option {
	return func(s *Simulator) {
		if b > 0 {
			s.startingBalance = b
		}
	}
}

// WithWallBudget overrides the wall-clock budget.
func WithWallBudget(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.wallBudget = d
		}
	}
}

// WithWorkers pins the worker count; by default GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Simulator with defaults, then applies options.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		startingBalance: DefaultStartingBalance,
		wallBudget:      DefaultWallBudget,
		workers:         runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeriveSeed computes the simulation seed from the strategy identity and the
// thresholds hash: same inputs, same seed, same result. The seed is reported
// back for audit.
func DeriveSeed(strategyID, strategyVersion, thresholdsHash string) uint64 {
	sum := sha256.Sum256([]byte(strategyID + "|" + strategyVersion + "|" + thresholdsHash))
	return binary.BigEndian.Uint64(sum[:8])
}

// BlockSize returns the bootstrap block length for a series of n trades:
// max(1, ceil(sqrt(n))), preserving short-range serial correlation.
func BlockSize(n int) int {
	if n <= 1 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Run simulates ruin probability over pnls. Below cfg.MinTradeCount closed
// trades the simulation is skipped (Evaluated=false) with a warning; the
// caller treats that as NOT_EVALUATED, not as a failure.
func (s *Simulator) Run(pnls []float64, seed uint64, cfg domain.ThresholdsConfig) Result {
	if len(pnls) < cfg.MinTradeCount {
		return Result{
			Seed:    seed,
			Warning: "Monte Carlo skipped: insufficient sample",
		}
	}

	iterations := cfg.MonteCarloIterations
	if iterations <= 0 {
		iterations = 1
	}

	deadline := time.Now().Add(s.wallBudget)
	blockSize := BlockSize(len(pnls))
	floor := s.startingBalance * (1 - RuinFloorPct)

	var ruins, done atomic.Int64
	var wg sync.WaitGroup

	workers := s.workers
	if workers > iterations {
		workers = iterations
	}

	// Iterations are striped across workers. The tally is order-independent
	// and each iteration's RNG depends only on (seed, index), so the outcome
	// is identical for any worker count — unless the wall budget trims the
	// run, which is reported via IterationsRun.
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := offset; i < iterations; i += workers {
				if time.Now().After(deadline) {
					return
				}
				rng := rand.New(rand.NewSource(int64(seed ^ uint64(i)*seedStride)))
				if s.simulateOnce(rng, pnls, blockSize, floor) {
					ruins.Add(1)
				}
				done.Add(1)
			}
		}(w)
	}
	wg.Wait()

	run := int(done.Load())
	if run == 0 {
		return Result{Seed: seed, Warning: "Monte Carlo skipped: wall budget exhausted"}
	}

	return Result{
		Evaluated:       true,
		RuinProbability: float64(ruins.Load()) / float64(run),
		IterationsRun:   run,
		Ruins:           int(ruins.Load()),
		Seed:            seed,
	}
}

// simulateOnce walks one resampled equity curve and reports whether it ever
// touched the ruin floor. Blocks wrap around the end of the series.
func (s *Simulator) simulateOnce(rng *rand.Rand, pnls []float64, blockSize int, floor float64) bool {
	n := len(pnls)
	equity := s.startingBalance

	for drawn := 0; drawn < n; {
		start := rng.Intn(n)
		for j := 0; j < blockSize && drawn < n; j++ {
			equity += pnls[(start+j)%n]
			if equity <= floor {
				return true
			}
			drawn++
		}
	}
	return false
}
