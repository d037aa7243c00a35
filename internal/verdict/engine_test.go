package verdict

import (
	"encoding/json"
	"testing"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/montecarlo"
	"strategy-verdict-lab/internal/thresholds"
	"strategy-verdict-lab/internal/walkforward"
)

func fp(f float64) *float64 { return &f }

func cfg() domain.ThresholdsConfig { return thresholds.DefaultThresholds() }

func baseInputs() Inputs {
	return Inputs{
		StrategyID:      "strat-1",
		StrategyVersion: "1.0.0",
		SampleSize:      30,
		WalkForward:     walkforward.Result{Tier: walkforward.TierNotEvaluated},
	}
}

// Scenario: 30 trades, perfect composite, no flags.
func TestCombine_Ready(t *testing.T) {
	in := baseInputs()
	in.Composite = fp(1.0)
	in.WalkForward = walkforward.Result{Tier: walkforward.TierPass}

	got := Combine(in, cfg())
	if got.Verdict != domain.VerdictReady {
		t.Fatalf("expected READY, got %s (%v)", got.Verdict, got.ReasonCodes)
	}
	if len(got.ReasonCodes) != 0 {
		t.Errorf("READY must carry no reason codes, got %v", got.ReasonCodes)
	}
}

// Scenario: 10 trades and nothing else.
func TestCombine_InsufficientSample(t *testing.T) {
	in := baseInputs()
	in.SampleSize = 10

	got := Combine(in, cfg())
	if got.Verdict != domain.VerdictNotDeployable {
		t.Fatalf("expected NOT_DEPLOYABLE, got %s", got.Verdict)
	}
	if len(got.ReasonCodes) != 1 || got.ReasonCodes[0] != domain.ReasonInsufficientSample {
		t.Errorf("expected [INSUFFICIENT_SAMPLE], got %v", got.ReasonCodes)
	}
}

// Scenario: 30 trades, middling composite.
func TestCombine_Uncertain(t *testing.T) {
	in := baseInputs()
	in.Composite = fp(0.5)

	got := Combine(in, cfg())
	if got.Verdict != domain.VerdictUncertain {
		t.Fatalf("expected UNCERTAIN, got %s", got.Verdict)
	}
}

func TestCombine_InsufficientSampleOverridesAllElse(t *testing.T) {
	in := baseInputs()
	in.SampleSize = 5
	in.Composite = fp(1.0)
	in.WalkForward = walkforward.Result{
		Tier:       walkforward.TierExtreme,
		ReasonCode: domain.ReasonWalkForwardDegradationExtreme,
		Severity:   walkforward.SeverityExtreme,
	}

	got := Combine(in, cfg())
	if len(got.ReasonCodes) != 1 || got.ReasonCodes[0] != domain.ReasonInsufficientSample {
		t.Errorf("sample floor must override other signals, got %v", got.ReasonCodes)
	}
}

func TestCombine_ExtremeDegradationDisqualifies(t *testing.T) {
	in := baseInputs()
	in.Composite = fp(1.0)
	in.WalkForward = walkforward.Result{
		Tier:       walkforward.TierExtreme,
		ReasonCode: domain.ReasonWalkForwardDegradationExtreme,
		Severity:   walkforward.SeverityExtreme,
	}

	got := Combine(in, cfg())
	if got.Verdict != domain.VerdictNotDeployable {
		t.Fatalf("expected NOT_DEPLOYABLE, got %s", got.Verdict)
	}
	if got.ReasonCodes[0] != domain.ReasonWalkForwardDegradationExtreme {
		t.Errorf("expected extreme degradation reason, got %v", got.ReasonCodes)
	}
}

func TestCombine_RuinBreachDisqualifies(t *testing.T) {
	in := baseInputs()
	in.Composite = fp(1.0)
	in.MonteCarlo = montecarlo.Result{Evaluated: true, RuinProbability: 0.2, IterationsRun: 1000}

	got := Combine(in, cfg())
	if got.Verdict != domain.VerdictNotDeployable {
		t.Fatalf("expected NOT_DEPLOYABLE, got %s", got.Verdict)
	}
	if got.ReasonCodes[0] != domain.ReasonMonteCarloRuin {
		t.Errorf("expected MONTE_CARLO_RUIN, got %v", got.ReasonCodes)
	}
}

func TestCombine_CompositeFloorDisqualifies(t *testing.T) {
	in := baseInputs()
	in.Composite = fp(0.2)

	got := Combine(in, cfg())
	if got.Verdict != domain.VerdictNotDeployable {
		t.Fatalf("expected NOT_DEPLOYABLE, got %s", got.Verdict)
	}
	if got.ReasonCodes[0] != domain.ReasonLowCompositeScore {
		t.Errorf("expected LOW_COMPOSITE_SCORE, got %v", got.ReasonCodes)
	}
}

func TestCombine_ModerateFlagBlocksReady(t *testing.T) {
	in := baseInputs()
	in.Composite = fp(0.95)
	in.WalkForward = walkforward.Result{
		Tier:       walkforward.TierModerateConclusive,
		ReasonCode: domain.ReasonWalkForwardDegradationExtreme,
		Severity:   walkforward.SeverityModerate,
	}

	got := Combine(in, cfg())
	if got.Verdict != domain.VerdictUncertain {
		t.Fatalf("flagged strategy cannot be READY, got %s", got.Verdict)
	}
	if len(got.ReasonCodes) == 0 {
		t.Error("UNCERTAIN via a flag should carry the flag's reason code")
	}
}

func TestCombine_NilCompositeCannotBeReady(t *testing.T) {
	in := baseInputs()
	in.WalkForward = walkforward.Result{Tier: walkforward.TierPass}

	got := Combine(in, cfg())
	if got.Verdict == domain.VerdictReady {
		t.Fatal("missing composite must not produce READY")
	}
	found := false
	for _, w := range got.Warnings {
		if w == "no composite robustness score supplied" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected missing-composite warning, got %v", got.Warnings)
	}
}

func TestCombine_MissingOptionalDataIsWarningNotError(t *testing.T) {
	got := Combine(baseInputs(), cfg())
	if got.Verdict != domain.VerdictUncertain {
		t.Fatalf("expected UNCERTAIN with everything missing, got %s", got.Verdict)
	}
	if len(got.Warnings) < 2 {
		t.Errorf("expected warnings about missing signals, got %v", got.Warnings)
	}
}

func TestCombine_MonotoneSeverityInDegradation(t *testing.T) {
	rank := map[domain.Verdict]int{
		domain.VerdictReady:         0,
		domain.VerdictUncertain:     1,
		domain.VerdictNotDeployable: 2,
	}
	c := cfg()

	prev := -1
	for d := 0.0; d <= 100; d += 5 {
		deg := d
		oos := 100
		in := baseInputs()
		in.Composite = fp(1.0)
		in.Degradation = &deg
		in.OosSampleSize = &oos
		in.WalkForward = walkforward.Classify(walkforward.Input{DegradationPct: &deg, OosSampleSize: &oos}, c)

		got := rank[Combine(in, c).Verdict]
		if got < prev {
			t.Fatalf("verdict improved at degradation=%.0f", d)
		}
		prev = got
	}
}

func TestCombine_ByteIdenticalOnRepeat(t *testing.T) {
	in := baseInputs()
	in.Composite = fp(0.5)
	in.Degradation = fp(30)
	in.WalkForward = walkforward.Classify(walkforward.Input{DegradationPct: in.Degradation}, cfg())
	in.MonteCarlo = montecarlo.Result{Evaluated: true, RuinProbability: 0.01, IterationsRun: 1000}

	a, err := json.Marshal(Combine(in, cfg()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(Combine(in, cfg()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("repeat computation differs:\n%s\n%s", a, b)
	}
}
