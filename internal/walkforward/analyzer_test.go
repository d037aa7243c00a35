package walkforward

import (
	"testing"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/thresholds"
)

func fp(f float64) *float64 { return &f }
func ip(i int) *int         { return &i }

func cfg() domain.ThresholdsConfig { return thresholds.DefaultThresholds() }

func TestClassify_NoDegradationSupplied(t *testing.T) {
	r := Classify(Input{}, cfg())
	if r.Tier != TierNotEvaluated {
		t.Fatalf("expected NOT_EVALUATED, got %s", r.Tier)
	}
	if r.ReasonCode != "" {
		t.Errorf("NOT_EVALUATED must carry no reason code, got %s", r.ReasonCode)
	}
}

func TestClassify_Pass(t *testing.T) {
	// Default T1 is 20%.
	r := Classify(Input{DegradationPct: fp(15), OosSampleSize: ip(100)}, cfg())
	if r.Tier != TierPass || r.ReasonCode != "" {
		t.Errorf("expected PASS with no flag, got %+v", r)
	}
}

func TestClassify_PassAtBoundary(t *testing.T) {
	// degradation == T1 is still PASS (classification is strict-greater).
	r := Classify(Input{DegradationPct: fp(20)}, cfg())
	if r.Tier != TierPass {
		t.Errorf("expected PASS at T1 boundary, got %s", r.Tier)
	}
}

func TestClassify_ModerateConclusive(t *testing.T) {
	r := Classify(Input{DegradationPct: fp(30), OosSampleSize: ip(50)}, cfg())
	if r.Tier != TierModerateConclusive {
		t.Fatalf("expected MODERATE_CONCLUSIVE, got %s", r.Tier)
	}
	if r.ReasonCode != domain.ReasonWalkForwardDegradationExtreme {
		t.Errorf("wrong reason code: %s", r.ReasonCode)
	}
	if r.Severity != SeverityModerate {
		t.Errorf("expected moderate severity, got %d", r.Severity)
	}
}

func TestClassify_ModerateInconclusive(t *testing.T) {
	for _, oos := range []*int{ip(10), nil} {
		r := Classify(Input{DegradationPct: fp(30), OosSampleSize: oos}, cfg())
		if r.Tier != TierModerateInconclusive {
			t.Fatalf("oos=%v: expected MODERATE_INCONCLUSIVE, got %s", oos, r.Tier)
		}
		if r.ReasonCode != domain.ReasonWalkForwardFlaggedInconclusive {
			t.Errorf("oos=%v: wrong reason code: %s", oos, r.ReasonCode)
		}
	}
}

func TestClassify_ExtremeIgnoresSampleSize(t *testing.T) {
	// Default T2 is 40%; oos count is irrelevant past it.
	for _, oos := range []*int{ip(1000), ip(1), nil} {
		r := Classify(Input{DegradationPct: fp(55), OosSampleSize: oos}, cfg())
		if r.Tier != TierExtreme {
			t.Fatalf("oos=%v: expected EXTREME, got %s", oos, r.Tier)
		}
		if r.Severity != SeverityExtreme {
			t.Errorf("oos=%v: expected extreme severity, got %d", oos, r.Severity)
		}
	}
}

func TestClassify_SeverityMonotoneInDegradation(t *testing.T) {
	prev := SeverityNone
	for d := 0.0; d <= 100; d += 5 {
		r := Classify(Input{DegradationPct: fp(d), OosSampleSize: ip(100)}, cfg())
		if r.Severity < prev {
			t.Fatalf("severity decreased at degradation=%.0f", d)
		}
		prev = r.Severity
	}
}

func TestDeriveDegradation(t *testing.T) {
	if d := DeriveDegradation(2.0, 1.0); d == nil || *d != 50 {
		t.Errorf("expected 50%%, got %v", d)
	}
	// OOS outperformance clamps to zero rather than going negative.
	if d := DeriveDegradation(1.0, 2.0); d == nil || *d != 0 {
		t.Errorf("expected 0%%, got %v", d)
	}
	// No positive baseline, no figure.
	if d := DeriveDegradation(0, 1.0); d != nil {
		t.Errorf("expected nil, got %v", *d)
	}
	if d := DeriveDegradation(-1.5, 1.0); d != nil {
		t.Errorf("expected nil for negative baseline, got %v", *d)
	}
}
