// Package chain implements the tamper-evident track-record ledger: an
// append-only hash chain per live instance, HMAC checkpoints over chain
// segments, and the verifier that recomputes both.
package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"strategy-verdict-lab/internal/canonical"
	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// GenesisHash is the prevHash of every chain's first event.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ComputeHash derives an event hash from its canonical payload, the previous
// hash, and the sequence number. The payload must already be in canonical
// form; callers go through canonical.Normalize before hashing.
func ComputeHash(canonicalPayload []byte, prevHash string, sequence int64) string {
	h := sha256.New()
	h.Write(canonicalPayload)
	h.Write([]byte(prevHash))
	h.Write([]byte(strconv.FormatInt(sequence, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// Chain appends events for live instances. Heads are serialized by the store:
// the conditional append fails with storage.ErrConflict when the supplied
// head hash is stale, and the caller retries with the refreshed head.
type Chain struct {
	events storage.EventStore
	now    func() int64
}

// New creates a Chain over the given event store.
func New(events storage.EventStore) *Chain {
	return &Chain{
		events: events,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Head returns the current chain head for an instance: its hash and the next
// sequence number. An empty chain yields (GenesisHash, 0).
func (c *Chain) Head(ctx context.Context, instanceID string) (string, int64, error) {
	head, err := c.events.Head(ctx, instanceID)
	if err != nil {
		if err == storage.ErrNotFound {
			return GenesisHash, 0, nil
		}
		return "", 0, fmt.Errorf("read head: %w", err)
	}
	return head.Hash, head.Sequence + 1, nil
}

// Append adds the next event. expectedPrevHash is the head hash the caller
// observed; on a stale head the append fails with storage.ErrConflict and the
// chain is unchanged. The stored payload is the canonical form the hash was
// computed over, so verification never depends on the caller's formatting.
func (c *Chain) Append(ctx context.Context, instanceID, eventType string, payload json.RawMessage, expectedPrevHash string) (*domain.TrackRecordEvent, error) {
	canonicalPayload, err := canonical.Normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", storage.ErrInvalidInput, err)
	}

	_, nextSeq, err := c.Head(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	e := &domain.TrackRecordEvent{
		InstanceID: instanceID,
		Sequence:   nextSeq,
		Timestamp:  c.now(),
		EventType:  eventType,
		Payload:    canonicalPayload,
		PrevHash:   expectedPrevHash,
		Hash:       ComputeHash(canonicalPayload, expectedPrevHash, nextSeq),
	}

	if err := c.events.Append(ctx, e, expectedPrevHash); err != nil {
		return nil, err
	}
	return e, nil
}

// Verifier walks chains and checkpoint sets read-only. It is safe to run
// concurrently with appends: verification is bounded by the max sequence
// captured at call start, so live appends past that point are out of scope.
type Verifier struct {
	events      storage.EventStore
	checkpoints storage.CheckpointStore
	hmacKey     []byte
}

// NewVerifier creates a Verifier. checkpoints and hmacKey may be nil when
// only plain chain verification is needed.
func NewVerifier(events storage.EventStore, checkpoints storage.CheckpointStore, hmacKey []byte) *Verifier {
	return &Verifier{events: events, checkpoints: checkpoints, hmacKey: hmacKey}
}

// Verify recomputes every hash from genesis up to the snapshot bound and
// compares against the stored values. The walk stops at the first mismatch:
// hashes past a break carry no information.
func (v *Verifier) Verify(ctx context.Context, instanceID string) (domain.ChainVerificationResult, error) {
	bound, err := v.events.MaxSequence(ctx, instanceID)
	if err != nil {
		return domain.ChainVerificationResult{}, fmt.Errorf("snapshot bound: %w", err)
	}
	if bound < 0 {
		return domain.ChainVerificationResult{Valid: true, Length: 0}, nil
	}
	return v.verifyRange(ctx, instanceID, 0, bound, GenesisHash)
}

// verifyRange walks [first, last], recomputing hashes. startPrevHash is the
// expected prevHash of the first event in the range.
func (v *Verifier) verifyRange(ctx context.Context, instanceID string, first, last int64, startPrevHash string) (domain.ChainVerificationResult, error) {
	events, err := v.events.GetRange(ctx, instanceID, first, last)
	if err != nil {
		return domain.ChainVerificationResult{}, fmt.Errorf("read range: %w", err)
	}

	prevHash := startPrevHash
	expectedSeq := first
	var firstHash, lastHash string

	for i, e := range events {
		if e.Sequence != expectedSeq {
			return domain.ChainVerificationResult{
				Valid:  false,
				Length: int64(i),
				Error:  fmt.Sprintf("sequence %d missing", expectedSeq),
			}, nil
		}
		if e.PrevHash != prevHash {
			return domain.ChainVerificationResult{
				Valid:  false,
				Length: int64(i),
				Error:  fmt.Sprintf("sequence %d hash mismatch", e.Sequence),
			}, nil
		}
		if ComputeHash(e.Payload, e.PrevHash, e.Sequence) != e.Hash {
			return domain.ChainVerificationResult{
				Valid:  false,
				Length: int64(i),
				Error:  fmt.Sprintf("sequence %d hash mismatch", e.Sequence),
			}, nil
		}
		if i == 0 {
			firstHash = e.Hash
		}
		lastHash = e.Hash
		prevHash = e.Hash
		expectedSeq++
	}

	if expectedSeq <= last {
		return domain.ChainVerificationResult{
			Valid:  false,
			Length: int64(len(events)),
			Error:  fmt.Sprintf("sequence %d missing", expectedSeq),
		}, nil
	}

	return domain.ChainVerificationResult{
		Valid:          true,
		Length:         int64(len(events)),
		FirstEventHash: firstHash,
		LastEventHash:  lastHash,
	}, nil
}

// CheckpointReport is the per-checkpoint verification outcome.
type CheckpointReport struct {
	FirstSequence int64  `json:"firstSequence"`
	LastSequence  int64  `json:"lastSequence"`
	Valid         bool   `json:"valid"`
	Error         string `json:"error,omitempty"`
}

// VerifyCheckpoints recomputes every stored checkpoint's HMAC and re-verifies
// the chain segment it covers. Checkpoints are what make wholesale chain
// regeneration detectable, so an HMAC failure is reported even when the chain
// itself verifies.
func (v *Verifier) VerifyCheckpoints(ctx context.Context, instanceID string) (bool, []CheckpointReport, error) {
	if v.checkpoints == nil {
		return true, nil, nil
	}
	cps, err := v.checkpoints.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return false, nil, fmt.Errorf("read checkpoints: %w", err)
	}

	allValid := true
	reports := make([]CheckpointReport, 0, len(cps))
	for _, cp := range cps {
		report := CheckpointReport{FirstSequence: cp.FirstSequence, LastSequence: cp.LastSequence, Valid: true}

		if ComputeCheckpointHMAC(v.hmacKey, cp.FirstSequence, cp.LastSequence, cp.LastHash) != cp.HMAC {
			report.Valid = false
			report.Error = "hmac mismatch"
		} else {
			startPrev, err := v.prevHashBefore(ctx, instanceID, cp.FirstSequence)
			if err != nil {
				return false, nil, err
			}
			res, err := v.verifyRange(ctx, instanceID, cp.FirstSequence, cp.LastSequence, startPrev)
			if err != nil {
				return false, nil, err
			}
			if !res.Valid {
				report.Valid = false
				report.Error = res.Error
			} else if res.LastEventHash != cp.LastHash {
				report.Valid = false
				report.Error = "covered range does not end at checkpointed hash"
			}
		}

		if !report.Valid {
			allValid = false
		}
		reports = append(reports, report)
	}
	return allValid, reports, nil
}

func (v *Verifier) prevHashBefore(ctx context.Context, instanceID string, seq int64) (string, error) {
	if seq == 0 {
		return GenesisHash, nil
	}
	prev, err := v.events.GetRange(ctx, instanceID, seq-1, seq-1)
	if err != nil {
		return "", fmt.Errorf("read predecessor: %w", err)
	}
	if len(prev) == 0 {
		// Missing predecessor surfaces as a prevHash mismatch in the walk.
		return "", nil
	}
	return prev[0].Hash, nil
}
