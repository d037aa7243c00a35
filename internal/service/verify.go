// Package service orchestrates a verdict run: resolve thresholds, execute the
// analyzers, combine the verdict, feed the lifecycle machine, and persist the
// audit trail.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/lifecycle"
	"strategy-verdict-lab/internal/montecarlo"
	"strategy-verdict-lab/internal/observability"
	"strategy-verdict-lab/internal/storage"
	"strategy-verdict-lab/internal/thresholds"
	"strategy-verdict-lab/internal/verdict"
	"strategy-verdict-lab/internal/walkforward"
)

// ErrThresholdsMissing is returned when no threshold configuration can be
// trusted; the verdict is refused rather than computed against guessed values.
var ErrThresholdsMissing = errors.New("thresholds unresolvable: refusing to compute verdict")

// BacktestParameters carries the optional in-sample/out-of-sample split
// results used to derive walk-forward degradation when the caller does not
// supply it directly.
type BacktestParameters struct {
	InSampleSharpe *float64 `json:"inSampleSharpe,omitempty"`
	OosSharpe      *float64 `json:"oosSharpe,omitempty"`
	OosTradeCount  *int     `json:"oosTradeCount,omitempty"`
}

// VerifyInput is one verdict request.
type VerifyInput struct {
	StrategyID      string
	StrategyVersion string
	CurrentState    domain.LifecycleState // optional; stored state used when empty
	Trades          []domain.Trade
	Backtest        BacktestParameters
	Intermediate    *domain.IntermediateResults
	ConfigVersion   string // optional; active version used when empty
}

// VerifyOutput is the full outcome of one verdict run.
type VerifyOutput struct {
	RunID          string                `json:"runId"`
	Result         domain.VerdictResult  `json:"verdictResult"`
	LifecycleState domain.LifecycleState `json:"lifecycleState"`
	Decision       domain.Decision       `json:"decision"`
	ConfigSource   domain.ConfigSource   `json:"configSource"`
	MonteCarloSeed uint64                `json:"monteCarloSeed"`
}

// Verifier wires the engines together. Audit persistence is best effort: a
// failed audit write is logged, never surfaced as a verdict failure.
type Verifier struct {
	resolver  *thresholds.Resolver
	simulator *montecarlo.Simulator
	machine   *lifecycle.Machine
	states    storage.LifecycleStore
	audit     storage.VerdictAuditStore
	logger    *log.Logger
	now       func() int64
}

// NewVerifier creates a Verifier. states and audit may be nil for offline
// runs; logger may be nil to disable logging.
func NewVerifier(resolver *thresholds.Resolver, simulator *montecarlo.Simulator, machine *lifecycle.Machine, states storage.LifecycleStore, audit storage.VerdictAuditStore, logger *log.Logger) *Verifier {
	if simulator == nil {
		simulator = montecarlo.New()
	}
	if machine == nil {
		machine = lifecycle.NewMachine()
	}
	return &Verifier{
		resolver:  resolver,
		simulator: simulator,
		machine:   machine,
		states:    states,
		audit:     audit,
		logger:    logger,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Verify runs the whole pipeline for one strategy version.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	started := time.Now()

	res := v.resolver.Resolve(ctx, in.ConfigVersion)
	observability.RecordThresholdResolution(string(res.Source))
	if res.Source == domain.ConfigSourceMissing {
		return nil, ErrThresholdsMissing
	}
	cfg := res.Config

	pnls := domain.ClosedPnLs(in.Trades)
	sampleSize := len(pnls)
	if in.Intermediate != nil && in.Intermediate.SampleSize > 0 {
		sampleSize = in.Intermediate.SampleSize
	}

	// Walk-forward signals: caller-supplied values win, a supplied
	// in-sample/out-of-sample Sharpe pair is the fallback.
	var degradation *float64
	var oosSample *int
	var composite *float64
	if in.Intermediate != nil {
		degradation = in.Intermediate.RobustnessScores.WalkForwardDegradationPct
		oosSample = in.Intermediate.RobustnessScores.WalkForwardOosSampleSize
		composite = in.Intermediate.RobustnessScores.Composite
	}
	if degradation == nil && in.Backtest.InSampleSharpe != nil && in.Backtest.OosSharpe != nil {
		degradation = walkforward.DeriveDegradation(*in.Backtest.InSampleSharpe, *in.Backtest.OosSharpe)
	}
	if oosSample == nil {
		oosSample = in.Backtest.OosTradeCount
	}

	wf := walkforward.Classify(walkforward.Input{DegradationPct: degradation, OosSampleSize: oosSample}, cfg)

	seed := montecarlo.DeriveSeed(in.StrategyID, in.StrategyVersion, cfg.ThresholdsHash)
	var mc montecarlo.Result
	if in.Intermediate != nil && in.Intermediate.RobustnessScores.MonteCarloRuinProbability != nil {
		mc = montecarlo.Result{
			Evaluated:       true,
			RuinProbability: *in.Intermediate.RobustnessScores.MonteCarloRuinProbability,
			Seed:            seed,
		}
	} else {
		mc = v.simulator.Run(pnls, seed, cfg)
		observability.RecordMonteCarloIterations(mc.IterationsRun)
	}

	result := verdict.Combine(verdict.Inputs{
		StrategyID:      in.StrategyID,
		StrategyVersion: in.StrategyVersion,
		SampleSize:      sampleSize,
		Composite:       composite,
		WalkForward:     wf,
		Degradation:     degradation,
		OosSampleSize:   oosSample,
		MonteCarlo:      mc,
	}, cfg)
	result.Warnings = append(result.Warnings, res.Warnings...)

	state, history, err := v.loadState(ctx, in)
	if err != nil {
		return nil, err
	}
	history = append(history, result.Verdict)
	if window := v.machine.HistoryWindow(); len(history) > window {
		history = history[len(history)-window:]
	}

	decision := v.machine.Next(state, result.Verdict, history)
	newState := lifecycle.Apply(state, decision)

	out := &VerifyOutput{
		RunID:          uuid.NewString(),
		Result:         result,
		LifecycleState: newState,
		Decision:       decision,
		ConfigSource:   res.Source,
		MonteCarloSeed: seed,
	}

	v.persist(ctx, in, out, history, mc)
	observability.RecordVerdict(string(result.Verdict), time.Since(started).Seconds())
	return out, nil
}

// ApplyExternalEvent feeds an out-of-band lifecycle trigger through the
// machine and persists the resulting state.
func (v *Verifier) ApplyExternalEvent(ctx context.Context, strategyID, strategyVersion string, ev domain.ExternalEvent) (*domain.Decision, error) {
	state, history, err := v.loadState(ctx, VerifyInput{StrategyID: strategyID, StrategyVersion: strategyVersion})
	if err != nil {
		return nil, err
	}

	decision := v.machine.ApplyExternal(state, ev)
	newState := lifecycle.Apply(state, decision)

	if v.states != nil && newState != state {
		rec := &domain.LifecycleRecord{
			StrategyID:      strategyID,
			StrategyVersion: strategyVersion,
			State:           newState,
			RecentVerdicts:  history,
			UpdatedAt:       v.now(),
		}
		if err := v.states.Put(ctx, rec); err != nil {
			return nil, err
		}
	}
	return &decision, nil
}

func (v *Verifier) loadState(ctx context.Context, in VerifyInput) (domain.LifecycleState, []domain.Verdict, error) {
	state := in.CurrentState
	var history []domain.Verdict

	if v.states != nil {
		rec, err := v.states.Get(ctx, in.StrategyID, in.StrategyVersion)
		switch {
		case err == nil:
			history = rec.RecentVerdicts
			if state == "" {
				state = rec.State
			}
		case errors.Is(err, storage.ErrNotFound):
			// First sighting of this strategy version.
		default:
			return "", nil, err
		}
	}
	if state == "" {
		state = domain.StateDraft
	}
	return state, history, nil
}

func (v *Verifier) persist(ctx context.Context, in VerifyInput, out *VerifyOutput, history []domain.Verdict, mc montecarlo.Result) {
	if v.states != nil {
		rec := &domain.LifecycleRecord{
			StrategyID:      in.StrategyID,
			StrategyVersion: in.StrategyVersion,
			State:           out.LifecycleState,
			RecentVerdicts:  history,
			UpdatedAt:       v.now(),
		}
		if err := v.states.Put(ctx, rec); err != nil {
			v.logf("persist lifecycle state: %v", err)
		}
	}

	if v.audit != nil {
		row := &domain.VerdictAuditRow{
			RunID:           out.RunID,
			StrategyID:      in.StrategyID,
			StrategyVersion: in.StrategyVersion,
			Verdict:         out.Result.Verdict,
			ReasonCodes:     out.Result.ReasonCodes,
			CompositeScore:  out.Result.Scores.Composite,
			DegradationPct:  out.Result.Scores.WalkForwardDegradationPct,
			RuinProbability: out.Result.Scores.MonteCarloRuinProbability,
			SampleSize:      out.Result.Scores.SampleSize,
			ThresholdsHash:  out.Result.ThresholdsUsed.ThresholdsHash,
			ConfigSource:    out.ConfigSource,
			MonteCarloSeed:  mc.Seed,
			CreatedAt:       v.now(),
		}
		if err := v.audit.Insert(ctx, row); err != nil {
			v.logf("persist verdict audit row: %v", err)
		}
	}
}

func (v *Verifier) logf(format string, args ...any) {
	if v.logger != nil {
		v.logger.Printf(format, args...)
	}
}
