package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

const genesis = "0000000000000000000000000000000000000000000000000000000000000000"

func event(instanceID string, seq int64, prevHash string) *domain.TrackRecordEvent {
	return &domain.TrackRecordEvent{
		InstanceID: instanceID,
		Sequence:   seq,
		Timestamp:  1704067200000 + seq,
		EventType:  domain.EventTypeHeartbeat,
		Payload:    json.RawMessage(`{"n":` + fmt.Sprint(seq) + `}`),
		PrevHash:   prevHash,
		Hash:       fmt.Sprintf("hash-%d", seq),
	}
}

func TestEventStore_AppendAndHead(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Append(ctx, event("inst-1", 0, genesis), genesis); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, event("inst-1", 1, "hash-0"), "hash-0"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	head, err := store.Head(ctx, "inst-1")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Sequence != 1 || head.Hash != "hash-1" {
		t.Errorf("wrong head: %+v", head)
	}
}

func TestEventStore_StaleHeadConflicts(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Append(ctx, event("inst-1", 0, genesis), genesis); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	err := store.Append(ctx, event("inst-1", 1, "stale"), "stale")
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Chain unchanged.
	max, _ := store.MaxSequence(ctx, "inst-1")
	if max != 0 {
		t.Errorf("conflict must not advance the chain, max=%d", max)
	}
}

func TestEventStore_EmptyChain(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if _, err := store.Head(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	max, err := store.MaxSequence(ctx, "nope")
	if err != nil || max != -1 {
		t.Errorf("expected -1, got %d (%v)", max, err)
	}
}

func TestEventStore_GetRange(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	prev := genesis
	for i := int64(0); i < 5; i++ {
		e := event("inst-1", i, prev)
		if err := store.Append(ctx, e, prev); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
		prev = e.Hash
	}

	events, err := store.GetRange(ctx, "inst-1", 1, 3)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Sequence != int64(i+1) {
			t.Errorf("wrong order at %d: seq %d", i, e.Sequence)
		}
	}
}

func TestEventStore_ConcurrentAppendsSingleWinner(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.Append(ctx, event("inst-1", 0, genesis), genesis); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Racing appends all claim the same head: exactly one may win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := event("inst-1", 1, "hash-0")
			e.Hash = fmt.Sprintf("candidate-%d", i)
			if err := store.Append(ctx, e, "hash-0"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning append, got %d", wins)
	}
	max, _ := store.MaxSequence(ctx, "inst-1")
	if max != 1 {
		t.Errorf("expected max sequence 1, got %d", max)
	}
}

func TestEventStore_CopyOnReadWrite(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := event("inst-1", 0, genesis)
	if err := store.Append(ctx, e, genesis); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	e.Hash = "mutated-after-insert"

	head, err := store.Head(ctx, "inst-1")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head.Hash != "hash-0" {
		t.Errorf("store leaked caller's pointer: %s", head.Hash)
	}
}
