package loyalty_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mainstreet/points-engine/ledger"
	"github.com/mainstreet/points-engine/loyalty"
	"github.com/mainstreet/points-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCoordinator(t *testing.T) (*loyalty.Coordinator, *sqlite.Store, *loyalty.AwardPolicy) {
	store := newTestStore(t)
	policy := loyalty.NewAwardPolicy(ledger.NewLedger(store))
	return loyalty.NewCoordinator(store), store, policy
}

func saveReward(t *testing.T, store *sqlite.Store, item loyalty.RewardItem) {
	t.Helper()
	require.NoError(t, store.SaveRewardItem(context.Background(), item))
}

// earnPoints credits a user via distinct surveys until the target is reached.
func earnPoints(t *testing.T, policy *loyalty.AwardPolicy, userID ledger.UserID, total int64) {
	t.Helper()
	_, err := policy.AwardForSurvey(context.Background(), userID, fmt.Sprintf("earn-%s-%d", userID, total), total)
	require.NoError(t, err)
}

func intPtr(n int) *int { return &n }

// =============================================================================
// SUCCESSFUL REDEMPTION TESTS
// =============================================================================

func TestRedeem_SufficientBalance_Succeeds(t *testing.T) {
	// GIVEN: A patron with 60 points and a 50-point reward
	// WHEN: They redeem it
	// THEN: A redemption and a -50 debit are written; balance is 10

	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Coffee Card", PointThreshold: 50, IsActive: true})
	earnPoints(t, policy, "user-1", 60)

	receipt, err := coord.Redeem(ctx, "user-1", "r1", "")
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, "Coffee Card", receipt.RewardName)
	assert.Equal(t, int64(50), receipt.Redemption.PointsRedeemed)

	assert.Equal(t, int64(10), balanceOf(t, store, "user-1"))

	redemptions, err := store.RedemptionsForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, redemptions, 1)

	// The debit entry references the redemption.
	entries, err := store.EntriesForUser(ctx, "user-1")
	require.NoError(t, err)
	var debit *ledger.Entry
	for i := range entries {
		if entries[i].SourceKind == ledger.SourceRedemption {
			debit = &entries[i]
		}
	}
	require.NotNil(t, debit)
	assert.Equal(t, redemptions[0].ID, debit.SourceRef)
	assert.Equal(t, int64(-50), debit.Amount.Int64())
}

func TestRedeem_ExactBalance_Succeeds(t *testing.T) {
	// Threshold is a minimum balance check: exactly 50 points redeems a
	// 50-point reward and leaves zero.

	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Coffee Card", PointThreshold: 50, IsActive: true})
	earnPoints(t, policy, "user-1", 50)

	_, err := coord.Redeem(ctx, "user-1", "r1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balanceOf(t, store, "user-1"))
}

func TestRedeem_BusinessName_OnReceipt(t *testing.T) {
	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBusiness(ctx, loyalty.Business{ID: "biz-1", Name: "Main Street Coffee"}))
	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Coffee Card", PointThreshold: 10, BusinessID: "biz-1", IsActive: true})
	earnPoints(t, policy, "user-1", 20)

	receipt, err := coord.Redeem(ctx, "user-1", "r1", "biz-1")
	require.NoError(t, err)
	assert.Equal(t, "Main Street Coffee", receipt.BusinessName)
}

// =============================================================================
// ORDERED VALIDATION TESTS
// =============================================================================

func TestRedeem_UnknownReward_NotFound(t *testing.T) {
	coord, _, policy := newTestCoordinator(t)
	earnPoints(t, policy, "user-1", 100)

	_, err := coord.Redeem(context.Background(), "user-1", "missing", "")
	assert.ErrorIs(t, err, ledger.ErrRewardNotFound)
}

func TestRedeem_InactiveReward_Rejected(t *testing.T) {
	coord, store, policy := newTestCoordinator(t)
	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Retired Mug", PointThreshold: 10, IsActive: false})
	earnPoints(t, policy, "user-1", 100)

	_, err := coord.Redeem(context.Background(), "user-1", "r1", "")
	assert.ErrorIs(t, err, ledger.ErrRewardInactive)
}

func TestRedeem_ExpiredReward_Rejected(t *testing.T) {
	coord, store, policy := newTestCoordinator(t)
	past := time.Now().UTC().Add(-24 * time.Hour)
	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Old Deal", PointThreshold: 10, IsActive: true, ExpirationDate: &past})
	earnPoints(t, policy, "user-1", 100)

	_, err := coord.Redeem(context.Background(), "user-1", "r1", "")
	assert.ErrorIs(t, err, ledger.ErrRewardExpired)
}

func TestRedeem_ExhaustedReward_Rejected(t *testing.T) {
	// GIVEN: A reward capped at 1 redemption, already claimed once
	// WHEN: A second patron tries to redeem
	// THEN: ErrRewardExhausted, and no points are deducted

	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Tote", PointThreshold: 10, IsActive: true, MaxRedemptions: intPtr(1)})
	earnPoints(t, policy, "user-1", 50)
	earnPoints(t, policy, "user-2", 50)

	_, err := coord.Redeem(ctx, "user-1", "r1", "")
	require.NoError(t, err)

	_, err = coord.Redeem(ctx, "user-2", "r1", "")
	assert.ErrorIs(t, err, ledger.ErrRewardExhausted)
	assert.Equal(t, int64(50), balanceOf(t, store, "user-2"))
}

func TestRedeem_InsufficientPoints_Rejected(t *testing.T) {
	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Dinner", PointThreshold: 200, IsActive: true})
	earnPoints(t, policy, "user-1", 60)

	_, err := coord.Redeem(ctx, "user-1", "r1", "")

	var short *ledger.InsufficientPointsError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, int64(60), short.Available.Int64())
	assert.Equal(t, int64(200), short.Required.Int64())
	assert.Equal(t, int64(140), short.Shortfall().Int64())

	// Nothing written.
	assert.Equal(t, int64(60), balanceOf(t, store, "user-1"))
	redemptions, err := store.RedemptionsForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, redemptions)
}

func TestRedeem_SecondAttempt_FailsOnSpentBalance(t *testing.T) {
	// GIVEN: A patron with 60 points redeems a 50-point reward (cap 1 is
	// irrelevant here since it was their own redemption)
	// WHEN: They try again with the remaining 10
	// THEN: InsufficientPoints, not RewardExhausted

	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Coffee Card", PointThreshold: 50, IsActive: true})
	earnPoints(t, policy, "user-1", 60)

	_, err := coord.Redeem(ctx, "user-1", "r1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balanceOf(t, store, "user-1"))

	_, err = coord.Redeem(ctx, "user-1", "r1", "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientPoints)
}

func TestRedeem_InactiveBeatsInsufficient(t *testing.T) {
	// Checks run in order: an inactive reward is reported as inactive even
	// when the balance is also short.

	coord, store, _ := newTestCoordinator(t)
	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Retired", PointThreshold: 500, IsActive: false})

	_, err := coord.Redeem(context.Background(), "broke-user", "r1", "")
	assert.ErrorIs(t, err, ledger.ErrRewardInactive)
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestRedeem_ConcurrentOnCappedReward_NeverExceedsCap(t *testing.T) {
	// GIVEN: A reward capped at 1 redemption and two funded patrons
	// WHEN: Both redeem concurrently
	// THEN: Exactly one succeeds; the other sees ErrRewardExhausted

	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Last One", PointThreshold: 80, IsActive: true, MaxRedemptions: intPtr(1)})
	earnPoints(t, policy, "user-1", 100)
	earnPoints(t, policy, "user-2", 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []ledger.UserID{"user-1", "user-2"} {
		wg.Add(1)
		go func(i int, user ledger.UserID) {
			defer wg.Done()
			_, errs[i] = coord.Redeem(ctx, user, "r1", "")
		}(i, user)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ledger.ErrRewardExhausted)
		}
	}
	assert.Equal(t, 1, successes)

	count, err := store.RedemptionCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedeem_ConcurrentSameUser_NeverOverdraws(t *testing.T) {
	// GIVEN: A patron with 60 points and a 50-point reward
	// WHEN: They submit two redemptions concurrently
	// THEN: One succeeds, one fails on insufficient points; balance is 10

	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Coffee Card", PointThreshold: 50, IsActive: true})
	earnPoints(t, policy, "user-1", 60)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Redeem(ctx, "user-1", "r1", "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ledger.ErrInsufficientPoints)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(10), balanceOf(t, store, "user-1"))
}

// =============================================================================
// ATOMICITY TESTS
// =============================================================================

// faultStore wraps the SQLite store and fails the debit append, proving
// the redemption row rolls back with it.
type faultStore struct {
	*sqlite.Store
}

func (f *faultStore) WithRedemptionTx(ctx context.Context, fn func(loyalty.RedemptionStore) error) error {
	return f.Store.WithRedemptionTx(ctx, func(s loyalty.RedemptionStore) error {
		return fn(&faultView{RedemptionStore: s})
	})
}

type faultView struct {
	loyalty.RedemptionStore
}

func (f *faultView) Append(ctx context.Context, e ledger.Entry) error {
	return fmt.Errorf("disk full")
}

func TestRedeem_DebitFails_NothingCommitted(t *testing.T) {
	// GIVEN: The debit write fails mid-transaction
	// THEN: The redemption row is rolled back too, and the error is
	// classified as transient

	store := newTestStore(t)
	policy := loyalty.NewAwardPolicy(ledger.NewLedger(store))
	coord := loyalty.NewCoordinator(&faultStore{Store: store})
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Coffee Card", PointThreshold: 50, IsActive: true})
	earnPoints(t, policy, "user-1", 60)

	_, err := coord.Redeem(ctx, "user-1", "r1", "")
	require.Error(t, err)
	assert.True(t, ledger.IsRetryable(err))

	count, err := store.RedemptionCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "no partial state may survive")
	assert.Equal(t, int64(60), balanceOf(t, store, "user-1"))
}

// =============================================================================
// REDEMPTION HISTORY TESTS
// =============================================================================

func TestRedemptionHistory_NewestFirst(t *testing.T) {
	coord, store, policy := newTestCoordinator(t)
	ctx := context.Background()

	saveReward(t, store, loyalty.RewardItem{ID: "r1", Name: "Coffee", PointThreshold: 10, IsActive: true})
	saveReward(t, store, loyalty.RewardItem{ID: "r2", Name: "Tote", PointThreshold: 10, IsActive: true})
	earnPoints(t, policy, "user-1", 100)

	base := time.Now().UTC()
	coord.Now = func() time.Time { return base }
	_, err := coord.Redeem(ctx, "user-1", "r1", "")
	require.NoError(t, err)

	coord.Now = func() time.Time { return base.Add(time.Minute) }
	_, err = coord.Redeem(ctx, "user-1", "r2", "")
	require.NoError(t, err)

	redemptions, err := store.RedemptionsForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, redemptions, 2)
	assert.Equal(t, "r2", redemptions[0].RewardItemID)
	assert.Equal(t, "r1", redemptions[1].RewardItemID)
}
