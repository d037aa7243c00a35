package api

import (
	"bytes"
	"encoding/json"
	"strconv"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/service"
)

// VerifyRequest is the wire form of a verdict request.
type VerifyRequest struct {
	StrategyID            string                      `json:"strategyId"`
	StrategyVersion       string                      `json:"strategyVersion"`
	CurrentLifecycleState string                      `json:"currentLifecycleState,omitempty"`
	TradeHistory          []TradeDTO                  `json:"tradeHistory"`
	BacktestParameters    service.BacktestParameters  `json:"backtestParameters"`
	IntermediateResults   *domain.IntermediateResults `json:"intermediateResults,omitempty"`
	ConfigVersion         string                      `json:"configVersion,omitempty"`
}

// TradeDTO is one trade on the wire.
type TradeDTO struct {
	Pair      string  `json:"pair"`
	PnL       float64 `json:"pnl"`
	EntryTime int64   `json:"entryTime"`
	CloseTime *int64  `json:"closeTime,omitempty"`
}

// Validate returns per-field problems, empty when the request is usable.
func (r *VerifyRequest) Validate() map[string]string {
	fields := make(map[string]string)
	if r.StrategyID == "" {
		fields["strategyId"] = "required"
	}
	if r.StrategyVersion == "" {
		fields["strategyVersion"] = "required"
	}
	if r.CurrentLifecycleState != "" && !validLifecycleState(r.CurrentLifecycleState) {
		fields["currentLifecycleState"] = "unknown state"
	}
	for i, tr := range r.TradeHistory {
		if tr.CloseTime != nil && *tr.CloseTime < tr.EntryTime {
			fields["tradeHistory"] = "closeTime before entryTime at index " + strconv.Itoa(i)
			break
		}
	}
	return fields
}

// ToInput converts the wire request into the service input.
func (r *VerifyRequest) ToInput() service.VerifyInput {
	trades := make([]domain.Trade, len(r.TradeHistory))
	for i, tr := range r.TradeHistory {
		trades[i] = domain.Trade{
			Pair:      tr.Pair,
			PnL:       tr.PnL,
			EntryTime: tr.EntryTime,
			CloseTime: tr.CloseTime,
		}
	}
	return service.VerifyInput{
		StrategyID:      r.StrategyID,
		StrategyVersion: r.StrategyVersion,
		CurrentState:    domain.LifecycleState(r.CurrentLifecycleState),
		Trades:          trades,
		Backtest:        r.BacktestParameters,
		Intermediate:    r.IntermediateResults,
		ConfigVersion:   r.ConfigVersion,
	}
}

// AppendEventRequest is the wire form of a chain append.
type AppendEventRequest struct {
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prevHash"`
}

// Validate returns per-field problems, empty when the request is usable.
func (r *AppendEventRequest) Validate() map[string]string {
	fields := make(map[string]string)
	switch r.EventType {
	case domain.EventTypeHeartbeat, domain.EventTypeTrade, domain.EventTypeReEvaluation:
	default:
		fields["eventType"] = "must be HEARTBEAT, TRADE or RE_EVALUATION"
	}
	// A JSON null decodes into the literal bytes "null", not an empty slice.
	if len(r.Payload) == 0 || bytes.Equal(r.Payload, []byte("null")) {
		fields["payload"] = "required"
	}
	if r.PrevHash == "" {
		fields["prevHash"] = "required"
	}
	return fields
}

// ErrorResponse is the uniform error body. Fields carries per-field detail
// for validation failures.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ConflictResponse is returned on a stale-head append; the caller retries
// with the refreshed head.
type ConflictResponse struct {
	Error        string `json:"error"`
	CurrentHead  string `json:"currentHead"`
	NextSequence int64  `json:"nextSequence"`
}

// TrackRecordVerifyResponse reports a chain's verification state.
type TrackRecordVerifyResponse struct {
	InstanceID  string                         `json:"instanceId"`
	EAName      string                         `json:"eaName,omitempty"`
	Mode        string                         `json:"mode,omitempty"`
	Chain       domain.ChainVerificationResult `json:"chain"`
	Checkpoints CheckpointsSummary             `json:"checkpoints"`
	Verified    bool                           `json:"verified"`
}

// CheckpointsSummary condenses the checkpoint verification outcome.
type CheckpointsSummary struct {
	Count    int    `json:"count"`
	LastHMAC string `json:"lastHmac,omitempty"`
	Verified bool   `json:"verified"`
}

func validLifecycleState(s string) bool {
	switch domain.LifecycleState(s) {
	case domain.StateDraft, domain.StateBacktested, domain.StateVerified,
		domain.StateLiveMonitoring, domain.StateEdgeAtRisk, domain.StateInvalidated:
		return true
	}
	return false
}
