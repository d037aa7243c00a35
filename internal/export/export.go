// Package export assembles the downloadable track-record snapshot: the full
// event chain, its checkpoints, the verification results and the computed
// metrics, packaged for independent offline audit.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"strategy-verdict-lab/internal/chain"
	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/perfmetrics"
	"strategy-verdict-lab/internal/storage"
)

// Snapshot is the complete exportable state of one instance's track record.
// Everything needed to re-verify the chain offline is included; the HMAC key
// is not, so checkpoint verification stays with the key holder.
type Snapshot struct {
	Instance            *domain.Instance               `json:"instance,omitempty"`
	Events              []*domain.TrackRecordEvent     `json:"events"`
	Checkpoints         []*domain.Checkpoint           `json:"checkpoints"`
	Chain               domain.ChainVerificationResult `json:"chain"`
	CheckpointsVerified bool                           `json:"checkpointsVerified"`
	Metrics             perfmetrics.Summary            `json:"metrics"`
	ExportedAt          int64                          `json:"exportedAt"` // ms
}

// Exporter builds snapshots from the stores.
type Exporter struct {
	events      storage.EventStore
	checkpoints storage.CheckpointStore
	instances   storage.InstanceStore
	verifier    *chain.Verifier
}

// NewExporter creates an Exporter. instances may be nil when no registry is
// configured.
func NewExporter(events storage.EventStore, checkpoints storage.CheckpointStore, instances storage.InstanceStore, verifier *chain.Verifier) *Exporter {
	return &Exporter{
		events:      events,
		checkpoints: checkpoints,
		instances:   instances,
		verifier:    verifier,
	}
}

// Assemble gathers the full snapshot for one instance.
func (e *Exporter) Assemble(ctx context.Context, instanceID string) (*Snapshot, error) {
	snap := &Snapshot{
		Events:      []*domain.TrackRecordEvent{},
		Checkpoints: []*domain.Checkpoint{},
		ExportedAt:  time.Now().UnixMilli(),
	}

	if e.instances != nil {
		inst, err := e.instances.GetByID(ctx, instanceID)
		if err == nil {
			snap.Instance = inst
		} else if err != storage.ErrNotFound {
			return nil, fmt.Errorf("load instance: %w", err)
		}
	}

	max, err := e.events.MaxSequence(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("max sequence: %w", err)
	}
	if max >= 0 {
		events, err := e.events.GetRange(ctx, instanceID, 0, max)
		if err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}
		snap.Events = events
	}

	cps, err := e.checkpoints.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	if cps != nil {
		snap.Checkpoints = cps
	}

	snap.Chain, err = e.verifier.Verify(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("verify chain: %w", err)
	}
	snap.CheckpointsVerified, _, err = e.verifier.VerifyCheckpoints(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("verify checkpoints: %w", err)
	}

	snap.Metrics = perfmetrics.Compute(TradesFromEvents(snap.Events), true)
	return snap, nil
}

// tradePayload is the expected shape of a TRADE event payload. Unknown fields
// are ignored; malformed payloads are skipped rather than failing the export.
type tradePayload struct {
	Pair      string   `json:"pair"`
	PnL       *float64 `json:"pnl"`
	EntryTime int64    `json:"entryTime"`
	CloseTime *int64   `json:"closeTime"`
}

// TradesFromEvents extracts the trade series from a chain's TRADE events.
func TradesFromEvents(events []*domain.TrackRecordEvent) []domain.Trade {
	var trades []domain.Trade
	for _, e := range events {
		if e.EventType != domain.EventTypeTrade {
			continue
		}
		var p tradePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.PnL == nil {
			continue
		}
		entry := p.EntryTime
		if entry == 0 {
			entry = e.Timestamp
		}
		trades = append(trades, domain.Trade{
			Pair:      p.Pair,
			PnL:       *p.PnL,
			EntryTime: entry,
			CloseTime: p.CloseTime,
		})
	}
	return trades
}

// RenderCSV renders the event list as CSV, one row per event.
func RenderCSV(events []*domain.TrackRecordEvent) string {
	var sb strings.Builder

	// Header
	sb.WriteString("instance_id,sequence,timestamp_ms,event_type,prev_hash,hash,payload\n")

	// Rows
	for _, e := range events {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s,%s,%s,%s\n",
			e.InstanceID,
			e.Sequence,
			e.Timestamp,
			e.EventType,
			e.PrevHash,
			e.Hash,
			csvQuote(string(e.Payload)),
		))
	}

	return sb.String()
}

// csvQuote wraps a field in double quotes, escaping embedded quotes. Payloads
// are JSON and always contain commas.
func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
