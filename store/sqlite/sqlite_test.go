package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainstreet/points-engine/ledger"
	"github.com/mainstreet/points-engine/loyalty"
	"github.com/mainstreet/points-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entry(id, userID string, amount int64, kind ledger.SourceKind, ref string, at time.Time) ledger.Entry {
	return ledger.Entry{
		ID:         ledger.EntryID(id),
		UserID:     ledger.UserID(userID),
		Amount:     ledger.NewPoints(amount),
		SourceKind: kind,
		SourceRef:  ref,
		CreatedAt:  at,
	}
}

// =============================================================================
// LEDGER PERSISTENCE TESTS
// =============================================================================

func TestStore_AppendAndRead_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	e := entry("e1", "user-1", 5, ledger.SourceCheckin, "event-1", now)
	e.BusinessID = "biz-1"
	require.NoError(t, store.Append(ctx, e))

	entries, err := store.EntriesForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, int64(5), got.Amount.Int64())
	assert.Equal(t, ledger.SourceCheckin, got.SourceKind)
	assert.Equal(t, "event-1", got.SourceRef)
	assert.Equal(t, ledger.BusinessID("biz-1"), got.BusinessID)
	assert.WithinDuration(t, now, got.CreatedAt, time.Second)
}

func TestStore_EntriesForUser_ChronologicalOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	// Inserted out of order on purpose.
	require.NoError(t, store.Append(ctx, entry("e2", "user-1", 2, ledger.SourceRSVP, "event-2", base.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, entry("e1", "user-1", 5, ledger.SourceCheckin, "event-1", base)))

	entries, err := store.EntriesForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.EntryID("e1"), entries[0].ID)
	assert.Equal(t, ledger.EntryID("e2"), entries[1].ID)
}

func TestStore_UniqueIndex_BlocksDirectDuplicate(t *testing.T) {
	// The index is the authoritative guard: even bypassing the ledger's
	// check-then-insert, a second credit for the same activity fails.

	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, entry("e1", "user-1", 5, ledger.SourceCheckin, "event-1", now)))

	err := store.Append(ctx, entry("e2", "user-1", 5, ledger.SourceCheckin, "event-1", now))
	assert.ErrorIs(t, err, ledger.ErrDuplicateActivity)
}

func TestStore_UniqueIndex_DebitsExempt(t *testing.T) {
	// The partial index covers credit kinds only; two debits may share a
	// source kind without colliding.

	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, entry("e1", "user-1", -10, ledger.SourceRedemption, "red-1", now)))
	require.NoError(t, store.Append(ctx, entry("e2", "user-1", -10, ledger.SourceRedemption, "red-2", now)))
	require.NoError(t, store.Append(ctx, entry("e3", "user-1", 3, ledger.SourceAdjustment, "ticket-1", now)))
	require.NoError(t, store.Append(ctx, entry("e4", "user-1", 3, ledger.SourceAdjustment, "ticket-1", now)))
}

func TestStore_ConcurrentDuplicateAppends_OneWins(t *testing.T) {
	// Many goroutines racing to append the same activity: exactly one row
	// lands, everyone else gets ErrDuplicateActivity.

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := entry(fmt.Sprintf("e%d", i), "user-1", 5, ledger.SourceCheckin, "event-1", now)
			errs[i] = store.Append(ctx, e)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ledger.ErrDuplicateActivity)
		}
	}
	assert.Equal(t, 1, successes)

	entries, err := store.EntriesForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_HasActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, entry("e1", "user-1", 5, ledger.SourceCheckin, "event-1", time.Now().UTC())))

	exists, err := store.HasActivity(ctx, "user-1", ledger.SourceCheckin, "event-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.HasActivity(ctx, "user-1", ledger.SourceRSVP, "event-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_WithTx_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.Append(ctx, entry("e1", "user-1", 5, ledger.SourceCheckin, "event-1", time.Now().UTC())); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	entries, err := store.EntriesForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_WithRedemptionTx_CommitsBothWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.WithRedemptionTx(ctx, func(s loyalty.RedemptionStore) error {
		r := loyalty.Redemption{ID: "red-1", UserID: "user-1", RewardItemID: "r1", PointsRedeemed: 50, CreatedAt: now}
		if err := s.InsertRedemption(ctx, r); err != nil {
			return err
		}
		return s.Append(ctx, entry("e1", "user-1", -50, ledger.SourceRedemption, "red-1", now))
	})
	require.NoError(t, err)

	count, err := store.RedemptionCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := store.EntriesForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_WithRedemptionTx_RollbackDiscardsBothWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.WithRedemptionTx(ctx, func(s loyalty.RedemptionStore) error {
		r := loyalty.Redemption{ID: "red-1", UserID: "user-1", RewardItemID: "r1", PointsRedeemed: 50, CreatedAt: now}
		if err := s.InsertRedemption(ctx, r); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	count, err := store.RedemptionCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestStore_RewardItem_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exp := time.Now().UTC().Add(30 * 24 * time.Hour)
	max := 5
	item := loyalty.RewardItem{
		ID:             "r1",
		Name:           "Coffee Card",
		Description:    "A $5 card",
		PointThreshold: 50,
		BusinessID:     "biz-1",
		IsActive:       true,
		ExpirationDate: &exp,
		MaxRedemptions: &max,
	}
	require.NoError(t, store.SaveRewardItem(ctx, item))

	got, err := store.RewardItem(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.Name, got.Name)
	assert.Equal(t, item.PointThreshold, got.PointThreshold)
	require.NotNil(t, got.ExpirationDate)
	assert.WithinDuration(t, exp, *got.ExpirationDate, time.Second)
	require.NotNil(t, got.MaxRedemptions)
	assert.Equal(t, 5, *got.MaxRedemptions)
}

func TestStore_RewardItem_Missing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.RewardItem(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveRewardItem_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRewardItem(ctx, loyalty.RewardItem{ID: "r1", Name: "Coffee", PointThreshold: 50, IsActive: true}))
	require.NoError(t, store.SaveRewardItem(ctx, loyalty.RewardItem{ID: "r1", Name: "Coffee", PointThreshold: 50, IsActive: false}))

	got, err := store.RewardItem(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)

	items, err := store.ListRewardItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

// =============================================================================
// DIRECTORY TESTS
// =============================================================================

func TestStore_Businesses_SortedByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBusiness(ctx, loyalty.Business{ID: "b2", Name: "Zinnia Florist"}))
	require.NoError(t, store.SaveBusiness(ctx, loyalty.Business{ID: "b1", Name: "Apple Cafe"}))

	businesses, err := store.ListBusinesses(ctx)
	require.NoError(t, err)
	require.Len(t, businesses, 2)
	assert.Equal(t, "Apple Cafe", businesses[0].Name)
	assert.Equal(t, "Zinnia Florist", businesses[1].Name)
}

func TestStore_Events_SortedByStart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveEvent(ctx, loyalty.Event{ID: "ev2", Name: "Later", StartsAt: now.Add(48 * time.Hour), EndsAt: now.Add(50 * time.Hour)}))
	require.NoError(t, store.SaveEvent(ctx, loyalty.Event{ID: "ev1", Name: "Sooner", StartsAt: now.Add(24 * time.Hour), EndsAt: now.Add(26 * time.Hour)}))

	events, err := store.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev1", events[0].ID)
	assert.Equal(t, "ev2", events[1].ID)
}

// =============================================================================
// PROMOTION TESTS
// =============================================================================

func TestStore_MultiplierAt_WindowAndBest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	save := func(id, mult string, start, end time.Time) {
		require.NoError(t, store.SavePromotion(ctx, loyalty.Promotion{
			ID: id, BusinessID: "biz-1", Name: id,
			Multiplier: decimal.RequireFromString(mult),
			StartsAt:   start, EndsAt: end,
		}))
	}
	save("p-active", "2", now.Add(-time.Hour), now.Add(time.Hour))
	save("p-better", "3", now.Add(-time.Hour), now.Add(time.Hour))
	save("p-past", "10", now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	mult, err := store.MultiplierAt(ctx, "biz-1", now)
	require.NoError(t, err)
	assert.True(t, mult.Equal(decimal.NewFromInt(3)), "best active multiplier wins")

	mult, err = store.MultiplierAt(ctx, "biz-other", now)
	require.NoError(t, err)
	assert.True(t, mult.Equal(loyalty.NoPromotion))
}

// =============================================================================
// RESET TESTS
// =============================================================================

func TestStore_Reset_ClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, entry("e1", "user-1", 5, ledger.SourceCheckin, "event-1", time.Now().UTC())))
	require.NoError(t, store.SaveRewardItem(ctx, loyalty.RewardItem{ID: "r1", Name: "Coffee", PointThreshold: 50, IsActive: true}))
	require.NoError(t, store.SaveBusiness(ctx, loyalty.Business{ID: "b1", Name: "Cafe"}))

	require.NoError(t, store.Reset(ctx))

	entries, err := store.EntriesForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	items, err := store.ListRewardItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	businesses, err := store.ListBusinesses(ctx)
	require.NoError(t, err)
	assert.Empty(t, businesses)

	// The activity key is free again after a reset.
	require.NoError(t, store.Append(ctx, entry("e2", "user-1", 5, ledger.SourceCheckin, "event-1", time.Now().UTC())))
}
