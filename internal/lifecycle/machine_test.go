package lifecycle

import (
	"testing"

	"strategy-verdict-lab/internal/domain"
)

// Scenario: BACKTESTED + READY advances to VERIFIED.
func TestNext_BacktestedReadyAdvances(t *testing.T) {
	m := NewMachine()
	d := m.Next(domain.StateBacktested, domain.VerdictReady, []domain.Verdict{domain.VerdictReady})

	if d.Kind != domain.DecisionAdvance {
		t.Fatalf("expected ADVANCE, got %s", d.Kind)
	}
	if d.From != domain.StateBacktested || d.To != domain.StateVerified {
		t.Errorf("expected BACKTESTED->VERIFIED, got %s->%s", d.From, d.To)
	}
}

func TestNext_BacktestedUncertainHolds(t *testing.T) {
	m := NewMachine()
	d := m.Next(domain.StateBacktested, domain.VerdictUncertain, nil)
	if d.Kind != domain.DecisionHold {
		t.Fatalf("expected HOLD, got %s", d.Kind)
	}
}

func TestNext_BacktestedNotDeployableTerminates(t *testing.T) {
	m := NewMachine()
	d := m.Next(domain.StateBacktested, domain.VerdictNotDeployable, nil)

	if d.Kind != domain.DecisionTerminate || d.To != domain.StateInvalidated {
		t.Fatalf("expected TERMINATE->INVALIDATED, got %s->%s", d.Kind, d.To)
	}
}

func TestNext_LiveMonitoringReverts(t *testing.T) {
	m := NewMachine()
	d := m.Next(domain.StateLiveMonitoring, domain.VerdictNotDeployable, nil)

	if d.Kind != domain.DecisionRevert || d.To != domain.StateEdgeAtRisk {
		t.Fatalf("expected REVERT->EDGE_AT_RISK, got %s->%s", d.Kind, d.To)
	}

	d = m.Next(domain.StateLiveMonitoring, domain.VerdictReady, nil)
	if d.Kind != domain.DecisionHold {
		t.Errorf("healthy live strategy should hold, got %s", d.Kind)
	}
}

func TestNext_EdgeAtRiskRecoveryRequiresFullStreak(t *testing.T) {
	m := NewMachine() // streak 3

	hist := []domain.Verdict{domain.VerdictNotDeployable, domain.VerdictReady, domain.VerdictReady}
	d := m.Next(domain.StateEdgeAtRisk, domain.VerdictReady, hist)
	if d.Kind != domain.DecisionHold {
		t.Fatalf("two good verdicts must not recover yet, got %s", d.Kind)
	}

	hist = append(hist, domain.VerdictUncertain) // third consecutive non-ND
	d = m.Next(domain.StateEdgeAtRisk, domain.VerdictUncertain, hist)
	if d.Kind != domain.DecisionAdvance || d.To != domain.StateLiveMonitoring {
		t.Fatalf("expected recovery ADVANCE->LIVE_MONITORING, got %s->%s", d.Kind, d.To)
	}
}

func TestNext_EdgeAtRiskTerminationStreak(t *testing.T) {
	m := NewMachine()

	hist := []domain.Verdict{domain.VerdictNotDeployable, domain.VerdictNotDeployable}
	d := m.Next(domain.StateEdgeAtRisk, domain.VerdictNotDeployable, hist)
	if d.Kind != domain.DecisionHold {
		t.Fatalf("two bad verdicts must not terminate yet, got %s", d.Kind)
	}

	hist = append(hist, domain.VerdictNotDeployable)
	d = m.Next(domain.StateEdgeAtRisk, domain.VerdictNotDeployable, hist)
	if d.Kind != domain.DecisionTerminate || d.To != domain.StateInvalidated {
		t.Fatalf("expected TERMINATE->INVALIDATED, got %s->%s", d.Kind, d.To)
	}
}

func TestNext_InvalidatedIsTerminal(t *testing.T) {
	m := NewMachine()
	for _, v := range []domain.Verdict{domain.VerdictReady, domain.VerdictUncertain, domain.VerdictNotDeployable} {
		d := m.Next(domain.StateInvalidated, v, []domain.Verdict{v, v, v})
		if d.Kind != domain.DecisionHold {
			t.Errorf("verdict %s moved a terminal state: %s", v, d.Kind)
		}
	}
}

func TestNext_DraftAndVerifiedIgnoreVerdicts(t *testing.T) {
	m := NewMachine()
	for _, s := range []domain.LifecycleState{domain.StateDraft, domain.StateVerified} {
		d := m.Next(s, domain.VerdictNotDeployable, nil)
		if d.Kind != domain.DecisionHold {
			t.Errorf("state %s must only move via external events, got %s", s, d.Kind)
		}
	}
}

func TestApplyExternal(t *testing.T) {
	m := NewMachine()

	d := m.ApplyExternal(domain.StateDraft, domain.EventBacktestCompleted)
	if d.Kind != domain.DecisionAdvance || d.To != domain.StateBacktested {
		t.Errorf("expected DRAFT->BACKTESTED, got %+v", d)
	}

	d = m.ApplyExternal(domain.StateVerified, domain.EventDeployLive)
	if d.Kind != domain.DecisionAdvance || d.To != domain.StateLiveMonitoring {
		t.Errorf("expected VERIFIED->LIVE_MONITORING, got %+v", d)
	}

	// Events against the wrong state hold in place.
	d = m.ApplyExternal(domain.StateDraft, domain.EventDeployLive)
	if d.Kind != domain.DecisionHold {
		t.Errorf("deploy from DRAFT must hold, got %+v", d)
	}
}

func TestApply(t *testing.T) {
	if s := Apply(domain.StateBacktested, domain.Decision{Kind: domain.DecisionHold}); s != domain.StateBacktested {
		t.Errorf("HOLD must not move state, got %s", s)
	}
	d := domain.Decision{Kind: domain.DecisionAdvance, From: domain.StateBacktested, To: domain.StateVerified}
	if s := Apply(domain.StateBacktested, d); s != domain.StateVerified {
		t.Errorf("expected VERIFIED, got %s", s)
	}
}
