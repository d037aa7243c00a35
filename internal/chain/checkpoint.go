package chain

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// DefaultCheckpointInterval is how many events a checkpoint covers.
const DefaultCheckpointInterval = 100

// ComputeCheckpointHMAC authenticates a chain segment: the covered sequence
// range plus the hash the range ends at. The key lives outside the database
// trust boundary, so rewriting events cannot silently regenerate checkpoints.
func ComputeCheckpointHMAC(key []byte, first, last int64, lastHash string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strconv.FormatInt(first, 10)))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatInt(last, 10)))
	mac.Write([]byte(":"))
	mac.Write([]byte(lastHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// Checkpointer cuts an authenticated checkpoint whenever a chain has grown by
// a full interval past the last checkpointed sequence.
type Checkpointer struct {
	events      storage.EventStore
	checkpoints storage.CheckpointStore
	key         []byte
	interval    int64
	now         func() int64
}

// NewCheckpointer creates a Checkpointer. interval <= 0 selects the default.
func NewCheckpointer(events storage.EventStore, checkpoints storage.CheckpointStore, key []byte, interval int64) *Checkpointer {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	return &Checkpointer{
		events:      events,
		checkpoints: checkpoints,
		key:         key,
		interval:    interval,
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

// MaybeCheckpoint cuts any checkpoints the chain has grown due for, and
// returns them. Chains shorter than a full interval produce none. Safe to
// call after every append; the common case is a no-op.
func (c *Checkpointer) MaybeCheckpoint(ctx context.Context, instanceID string) ([]*domain.Checkpoint, error) {
	maxSeq, err := c.events.MaxSequence(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("max sequence: %w", err)
	}
	if maxSeq < c.interval-1 {
		return nil, nil
	}

	nextFirst := int64(0)
	if latest, err := c.checkpoints.Latest(ctx, instanceID); err == nil {
		nextFirst = latest.LastSequence + 1
	} else if err != storage.ErrNotFound {
		return nil, fmt.Errorf("latest checkpoint: %w", err)
	}

	var cut []*domain.Checkpoint
	for nextFirst+c.interval-1 <= maxSeq {
		last := nextFirst + c.interval - 1
		events, err := c.events.GetRange(ctx, instanceID, last, last)
		if err != nil {
			return nil, fmt.Errorf("read range end: %w", err)
		}
		if len(events) == 0 {
			return cut, fmt.Errorf("sequence %d not found while checkpointing", last)
		}

		cp := &domain.Checkpoint{
			InstanceID:    instanceID,
			FirstSequence: nextFirst,
			LastSequence:  last,
			LastHash:      events[0].Hash,
			HMAC:          ComputeCheckpointHMAC(c.key, nextFirst, last, events[0].Hash),
			CreatedAt:     c.now(),
		}
		if err := c.checkpoints.Insert(ctx, cp); err != nil {
			// A concurrent checkpointer already cut this segment.
			if err == storage.ErrDuplicateKey {
				nextFirst = last + 1
				continue
			}
			return cut, fmt.Errorf("insert checkpoint: %w", err)
		}
		cut = append(cut, cp)
		nextFirst = last + 1
	}
	return cut, nil
}
