package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

func testThresholds(version string) *domain.ThresholdsConfig {
	return &domain.ThresholdsConfig{
		ConfigVersion:               version,
		ThresholdsHash:              "hash-" + version,
		MinTradeCount:               30,
		MinOosTradeCount:            30,
		ReadyConfidenceThreshold:    0.7,
		NotDeployableThreshold:      0.3,
		MaxSharpeDegradationPct:     20,
		ExtremeSharpeDegradationPct: 40,
		RuinProbabilityCeiling:      0.05,
		MonteCarloIterations:        1000,
	}
}

func TestThresholdsStore_InsertAndGetByVersion(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewThresholdsStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testThresholds("v1")))

	got, err := store.GetByVersion(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ConfigVersion)
	assert.Equal(t, 30, got.MinTradeCount)
	assert.Equal(t, 0.7, got.ReadyConfidenceThreshold)
	assert.Equal(t, 1000, got.MonteCarloIterations)
}

func TestThresholdsStore_VersionsAreImmutable(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewThresholdsStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testThresholds("v1")))

	changed := testThresholds("v1")
	changed.ReadyConfidenceThreshold = 0.9
	err := store.Insert(ctx, changed)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestThresholdsStore_GetActiveIsNewest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewThresholdsStore(pool)
	ctx := context.Background()

	_, err := store.GetActive(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, testThresholds("v1")))
	require.NoError(t, store.Insert(ctx, testThresholds("v2")))

	got, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ConfigVersion)
}

func TestLifecycleStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLifecycleStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "strat-1", "1.0.0")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := &domain.LifecycleRecord{
		StrategyID:      "strat-1",
		StrategyVersion: "1.0.0",
		State:           domain.StateBacktested,
		RecentVerdicts:  []domain.Verdict{domain.VerdictUncertain, domain.VerdictReady},
		UpdatedAt:       1700000000000,
	}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "strat-1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateBacktested, got.State)
	assert.Equal(t, rec.RecentVerdicts, got.RecentVerdicts)

	// Put replaces.
	rec.State = domain.StateVerified
	rec.RecentVerdicts = append(rec.RecentVerdicts, domain.VerdictReady)
	require.NoError(t, store.Put(ctx, rec))

	got, err = store.Get(ctx, "strat-1", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerified, got.State)
	assert.Len(t, got.RecentVerdicts, 3)
}

func TestCheckpointStore_InsertAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCheckpointStore(pool)
	ctx := context.Background()

	_, err := store.Latest(ctx, "inst-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	first := &domain.Checkpoint{
		InstanceID:    "inst-1",
		HMAC:          "mac-a",
		FirstSequence: 0,
		LastSequence:  99,
		LastHash:      "hash-099",
		CreatedAt:     1700000000000,
	}
	second := &domain.Checkpoint{
		InstanceID:    "inst-1",
		HMAC:          "mac-b",
		FirstSequence: 100,
		LastSequence:  199,
		LastHash:      "hash-199",
		CreatedAt:     1700000001000,
	}
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	assert.ErrorIs(t, store.Insert(ctx, first), storage.ErrDuplicateKey)

	latest, err := store.Latest(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, int64(199), latest.LastSequence)

	all, err := store.GetByInstanceID(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(99), all[0].LastSequence)
}

func TestInstanceStore_InsertGetList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewInstanceStore(pool)
	ctx := context.Background()

	inst := &domain.Instance{
		InstanceID:      "inst-1",
		EAName:          "trend-follower",
		Mode:            "live",
		StrategyID:      "strat-1",
		StrategyVersion: "1.0.0",
		CreatedAt:       1700000000000,
	}
	require.NoError(t, store.Insert(ctx, inst))
	assert.ErrorIs(t, store.Insert(ctx, inst), storage.ErrDuplicateKey)

	got, err := store.GetByID(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "trend-follower", got.EAName)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
