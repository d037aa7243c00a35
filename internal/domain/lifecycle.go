package domain

// LifecycleState is the current trust/deployment stage of a strategy version.
type LifecycleState string

const (
	StateDraft          LifecycleState = "DRAFT"
	StateBacktested     LifecycleState = "BACKTESTED"
	StateVerified       LifecycleState = "VERIFIED"
	StateLiveMonitoring LifecycleState = "LIVE_MONITORING"
	StateEdgeAtRisk     LifecycleState = "EDGE_AT_RISK"
	StateInvalidated    LifecycleState = "INVALIDATED"
)

// DecisionKind classifies a lifecycle transition decision.
type DecisionKind string

const (
	DecisionAdvance   DecisionKind = "ADVANCE"
	DecisionHold      DecisionKind = "HOLD"
	DecisionRevert    DecisionKind = "REVERT"
	DecisionTerminate DecisionKind = "TERMINATE"
)

// Decision is the outcome of feeding a verdict into the lifecycle state
// machine. From/To are empty for HOLD decisions.
type Decision struct {
	Kind   DecisionKind   `json:"kind"`
	From   LifecycleState `json:"from,omitempty"`
	To     LifecycleState `json:"to,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// ExternalEvent is a lifecycle transition trigger that originates outside the
// verdict pipeline.
type ExternalEvent string

const (
	EventBacktestCompleted ExternalEvent = "BACKTEST_COMPLETED"
	EventDeployLive        ExternalEvent = "DEPLOY_LIVE"
)

// LifecycleRecord is the persisted lifecycle state of one strategy version,
// together with the recent verdict history the streak rules evaluate.
type LifecycleRecord struct {
	StrategyID      string
	StrategyVersion string
	State           LifecycleState
	RecentVerdicts  []Verdict // most recent last, bounded by the machine's window
	UpdatedAt       int64     // ms
}
