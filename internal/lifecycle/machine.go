// Package lifecycle maps (current state, verdict, recent verdict history)
// onto a transition decision. The machine is pure: it performs no I/O and
// holds no per-strategy state; callers persist the resulting state and the
// verdict history window themselves.
package lifecycle

import (
	"strategy-verdict-lab/internal/domain"
)

// DefaultStreak is the consecutive re-evaluation count for both recovery out
// of EDGE_AT_RISK and termination from it.
const DefaultStreak = 3

// Machine evaluates lifecycle transitions.
type Machine struct {
	// RecoveryStreak: consecutive non-NOT_DEPLOYABLE verdicts needed to move
	// EDGE_AT_RISK back to LIVE_MONITORING.
	RecoveryStreak int

	// TerminationStreak: consecutive NOT_DEPLOYABLE verdicts after which
	// EDGE_AT_RISK becomes INVALIDATED.
	TerminationStreak int
}

// NewMachine returns a machine with the default streak windows.
func NewMachine() *Machine {
	return &Machine{RecoveryStreak: DefaultStreak, TerminationStreak: DefaultStreak}
}

// HistoryWindow is how many recent verdicts the caller needs to retain for
// the streak rules to be decidable.
func (m *Machine) HistoryWindow() int {
	if m.RecoveryStreak > m.TerminationStreak {
		return m.RecoveryStreak
	}
	return m.TerminationStreak
}

// Next maps the current state and latest verdict to a decision. history is
// the recent verdict sequence with the most recent last; it must already
// include the latest verdict. Unknown states hold in place.
func (m *Machine) Next(state domain.LifecycleState, v domain.Verdict, history []domain.Verdict) domain.Decision {
	switch state {
	case domain.StateBacktested:
		switch v {
		case domain.VerdictReady:
			return domain.Decision{
				Kind:   domain.DecisionAdvance,
				From:   domain.StateBacktested,
				To:     domain.StateVerified,
				Reason: "verdict READY",
			}
		case domain.VerdictNotDeployable:
			return domain.Decision{
				Kind:   domain.DecisionTerminate,
				From:   domain.StateBacktested,
				To:     domain.StateInvalidated,
				Reason: "verdict NOT_DEPLOYABLE",
			}
		default:
			return domain.Decision{Kind: domain.DecisionHold, Reason: "verdict UNCERTAIN"}
		}

	case domain.StateLiveMonitoring:
		if v == domain.VerdictNotDeployable {
			return domain.Decision{
				Kind:   domain.DecisionRevert,
				From:   domain.StateLiveMonitoring,
				To:     domain.StateEdgeAtRisk,
				Reason: "re-evaluation verdict NOT_DEPLOYABLE",
			}
		}
		return domain.Decision{Kind: domain.DecisionHold}

	case domain.StateEdgeAtRisk:
		if streak(history, m.TerminationStreak, func(v domain.Verdict) bool {
			return v == domain.VerdictNotDeployable
		}) {
			return domain.Decision{
				Kind:   domain.DecisionTerminate,
				From:   domain.StateEdgeAtRisk,
				To:     domain.StateInvalidated,
				Reason: "NOT_DEPLOYABLE streak reached termination window",
			}
		}
		if streak(history, m.RecoveryStreak, func(v domain.Verdict) bool {
			return v != domain.VerdictNotDeployable
		}) {
			return domain.Decision{
				Kind:   domain.DecisionAdvance,
				From:   domain.StateEdgeAtRisk,
				To:     domain.StateLiveMonitoring,
				Reason: "verdict recovered across consecutive re-evaluations",
			}
		}
		return domain.Decision{Kind: domain.DecisionHold, Reason: "streak window not yet decisive"}

	case domain.StateInvalidated:
		// Terminal.
		return domain.Decision{Kind: domain.DecisionHold, Reason: "INVALIDATED is terminal"}

	default:
		// DRAFT and VERIFIED advance only through external events.
		return domain.Decision{Kind: domain.DecisionHold}
	}
}

// ApplyExternal handles the transitions triggered outside the verdict
// pipeline. Events that do not apply to the current state hold in place.
func (m *Machine) ApplyExternal(state domain.LifecycleState, ev domain.ExternalEvent) domain.Decision {
	switch {
	case state == domain.StateDraft && ev == domain.EventBacktestCompleted:
		return domain.Decision{
			Kind:   domain.DecisionAdvance,
			From:   domain.StateDraft,
			To:     domain.StateBacktested,
			Reason: "backtest completed",
		}
	case state == domain.StateVerified && ev == domain.EventDeployLive:
		return domain.Decision{
			Kind:   domain.DecisionAdvance,
			From:   domain.StateVerified,
			To:     domain.StateLiveMonitoring,
			Reason: "deployed live",
		}
	default:
		return domain.Decision{Kind: domain.DecisionHold}
	}
}

// Apply returns the state a decision lands in.
func Apply(state domain.LifecycleState, d domain.Decision) domain.LifecycleState {
	if d.Kind == domain.DecisionHold || d.To == "" {
		return state
	}
	return d.To
}

// streak reports whether the trailing n verdicts all satisfy pred.
func streak(history []domain.Verdict, n int, pred func(domain.Verdict) bool) bool {
	if n <= 0 || len(history) < n {
		return false
	}
	for _, v := range history[len(history)-n:] {
		if !pred(v) {
			return false
		}
	}
	return true
}
