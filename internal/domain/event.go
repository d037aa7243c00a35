package domain

import "encoding/json"

// Track-record event types appended by the live-telemetry pipeline.
const (
	EventTypeHeartbeat    = "HEARTBEAT"
	EventTypeTrade        = "TRADE"
	EventTypeReEvaluation = "RE_EVALUATION"
)

// TrackRecordEvent is one entry of a live instance's append-only hash chain.
// Events are created once, never mutated, never deleted. Payload holds the
// canonical JSON form the hash was computed over.
//
// Invariant: Hash = sha256(Payload || PrevHash || decimal(Sequence)), hex.
// PrevHash of sequence 0 is the genesis constant.
type TrackRecordEvent struct {
	InstanceID string          `json:"instanceId"`
	Sequence   int64           `json:"sequence"`
	Timestamp  int64           `json:"timestamp"` // ms
	EventType  string          `json:"eventType"`
	Payload    json.RawMessage `json:"payload"`
	PrevHash   string          `json:"prevHash"`
	Hash       string          `json:"hash"`
}

// Checkpoint is an authenticated summary of a chain segment. It is
// independently recomputable from the events it covers, which is what lets a
// verifier detect wholesale chain regeneration.
type Checkpoint struct {
	InstanceID    string `json:"instanceId"`
	HMAC          string `json:"hmac"`
	FirstSequence int64  `json:"firstSequence"`
	LastSequence  int64  `json:"lastSequence"`
	LastHash      string `json:"lastHash"`
	CreatedAt     int64  `json:"createdAt"` // ms
}

// ChainVerificationResult reports the outcome of walking a chain. A broken
// link is a normal result, never an error: callers branch on Valid.
type ChainVerificationResult struct {
	Valid          bool   `json:"valid"`
	Length         int64  `json:"length"`
	FirstEventHash string `json:"firstEventHash,omitempty"`
	LastEventHash  string `json:"lastEventHash,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Instance is the registry entry for one live deployment writing a chain.
type Instance struct {
	InstanceID      string `json:"instanceId"`
	EAName          string `json:"eaName"`
	Mode            string `json:"mode"` // "live" | "demo"
	StrategyID      string `json:"strategyId"`
	StrategyVersion string `json:"strategyVersion"`
	CreatedAt       int64  `json:"createdAt"` // ms
}
