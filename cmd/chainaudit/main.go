// Package main audits an exported track-record snapshot offline: it replays
// the hash chain from genesis, and with -hmac-key also recomputes every
// checkpoint HMAC. No database access; the snapshot file is the whole input.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"strategy-verdict-lab/internal/chain"
	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/export"
	"strategy-verdict-lab/internal/storage"
)

func main() {
	// Parse flags
	inputPath := flag.String("input", "", "Path to exported snapshot JSON (required)")
	hmacKey := flag.String("hmac-key", os.Getenv("CHECKPOINT_HMAC_KEY"), "HMAC key for checkpoint verification (empty skips checkpoints)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[chainaudit] ", log.LstdFlags)

	// Validate required flags
	if *inputPath == "" {
		logger.Fatal("--input is required")
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		logger.Fatalf("read snapshot: %v", err)
	}
	var snap export.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Fatalf("parse snapshot: %v", err)
	}
	if len(snap.Events) == 0 {
		logger.Fatal("snapshot contains no events")
	}
	instanceID := snap.Events[0].InstanceID

	// Verify straight off the snapshot; its own recorded verification
	// results are not trusted.
	ctx := context.Background()
	verifier := chain.NewVerifier(
		&snapshotEvents{events: snap.Events},
		&snapshotCheckpoints{checkpoints: snap.Checkpoints},
		[]byte(*hmacKey),
	)

	res, err := verifier.Verify(ctx, instanceID)
	if err != nil {
		logger.Fatalf("verify chain: %v", err)
	}

	cpChecked := *hmacKey != "" && len(snap.Checkpoints) > 0
	cpValid := true
	var reports []chain.CheckpointReport
	if cpChecked {
		cpValid, reports, err = verifier.VerifyCheckpoints(ctx, instanceID)
		if err != nil {
			logger.Fatalf("verify checkpoints: %v", err)
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(map[string]any{
			"instanceId":         instanceID,
			"chain":              res,
			"checkpointsChecked": cpChecked,
			"checkpointsValid":   cpValid,
			"checkpoints":        reports,
		}, "", "  ")
		fmt.Println(string(output))
	} else {
		printAudit(instanceID, res, cpChecked, cpValid, reports)
	}

	if !res.Valid || !cpValid {
		os.Exit(1)
	}
}

// printAudit outputs a human-readable audit report.
func printAudit(instanceID string, res domain.ChainVerificationResult, cpChecked, cpValid bool, reports []chain.CheckpointReport) {
	fmt.Println()
	fmt.Println("=== Chain Audit ===")
	fmt.Printf("Instance:           %s\n", instanceID)
	fmt.Printf("Events Verified:    %d\n", res.Length)
	if res.Valid {
		fmt.Println("Chain:              VALID")
		fmt.Printf("First Event Hash:   %s\n", res.FirstEventHash)
		fmt.Printf("Last Event Hash:    %s\n", res.LastEventHash)
	} else {
		fmt.Println("Chain:              BROKEN")
		fmt.Printf("Error:              %s\n", res.Error)
	}

	fmt.Println()
	if !cpChecked {
		fmt.Println("Checkpoints:        SKIPPED (no key or none present)")
		return
	}
	if cpValid {
		fmt.Printf("Checkpoints:        VALID (%d)\n", len(reports))
	} else {
		fmt.Println("Checkpoints:        INVALID")
		for _, r := range reports {
			if !r.Valid {
				fmt.Printf("  [%d-%d] %s\n", r.FirstSequence, r.LastSequence, r.Error)
			}
		}
	}
}

// snapshotEvents serves the snapshot's event list read-only through the
// EventStore interface so the verifier can walk it unchanged.
type snapshotEvents struct {
	events []*domain.TrackRecordEvent
}

var _ storage.EventStore = (*snapshotEvents)(nil)

func (s *snapshotEvents) Append(_ context.Context, _ *domain.TrackRecordEvent, _ string) error {
	return errors.New("snapshot is read-only")
}

func (s *snapshotEvents) Head(_ context.Context, instanceID string) (*domain.TrackRecordEvent, error) {
	var head *domain.TrackRecordEvent
	for _, e := range s.events {
		if e.InstanceID != instanceID {
			continue
		}
		if head == nil || e.Sequence > head.Sequence {
			head = e
		}
	}
	if head == nil {
		return nil, storage.ErrNotFound
	}
	return head, nil
}

func (s *snapshotEvents) GetRange(_ context.Context, instanceID string, from, to int64) ([]*domain.TrackRecordEvent, error) {
	var out []*domain.TrackRecordEvent
	for _, e := range s.events {
		if e.InstanceID == instanceID && e.Sequence >= from && e.Sequence <= to {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *snapshotEvents) MaxSequence(_ context.Context, instanceID string) (int64, error) {
	max := int64(-1)
	for _, e := range s.events {
		if e.InstanceID == instanceID && e.Sequence > max {
			max = e.Sequence
		}
	}
	return max, nil
}

// snapshotCheckpoints serves the snapshot's checkpoint list read-only.
type snapshotCheckpoints struct {
	checkpoints []*domain.Checkpoint
}

var _ storage.CheckpointStore = (*snapshotCheckpoints)(nil)

func (s *snapshotCheckpoints) Insert(_ context.Context, _ *domain.Checkpoint) error {
	return errors.New("snapshot is read-only")
}

func (s *snapshotCheckpoints) GetByInstanceID(_ context.Context, instanceID string) ([]*domain.Checkpoint, error) {
	var out []*domain.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.InstanceID == instanceID {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSequence < out[j].FirstSequence })
	return out, nil
}

func (s *snapshotCheckpoints) Latest(_ context.Context, instanceID string) (*domain.Checkpoint, error) {
	cps, _ := s.GetByInstanceID(context.Background(), instanceID)
	if len(cps) == 0 {
		return nil, storage.ErrNotFound
	}
	return cps[len(cps)-1], nil
}
