/*
redeem.go - Atomic reward redemption

PURPOSE:
  The one genuinely concurrency-sensitive operation in the system:
  exchanging a patron's points for a reward item. Validation, balance
  derivation, and both writes (Redemption row + debit ledger entry)
  happen inside a single store transaction.

ORDERED CHECKS (each a distinct failure):
  1. Reward exists              -> ErrRewardNotFound
  2. Reward is active           -> ErrRewardInactive
  3. Reward has not expired     -> ErrRewardExpired
  4. Redemption cap not reached -> ErrRewardExhausted
  5. Balance >= threshold       -> InsufficientPointsError
  6. Insert Redemption + debit entry, atomically

RACE SAFETY:
  Steps 4-6 must be serialized per reward item (or two concurrent
  redemptions can jointly exceed MaxRedemptions) and steps 5-6 per user
  (or two concurrent redemptions can jointly overdraw a stale balance).
  Both guarantees come from WithRedemptionTx: the store serializes
  writers and the checks re-read inside the same transaction as the
  writes, so there is no window between check and commit.

SEE ALSO:
  - store.go: RedemptionStore / TxRedemptionStore contracts
  - store/sqlite/sqlite.go: The transaction implementation
*/
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/mainstreet/points-engine/ledger"
)

// =============================================================================
// REDEMPTION COORDINATOR
// =============================================================================

// Coordinator validates and commits reward redemptions.
type Coordinator struct {
	Store TxRedemptionStore

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewCoordinator(store TxRedemptionStore) *Coordinator {
	return &Coordinator{Store: store, Now: time.Now}
}

// Redeem exchanges points for the reward item. On success the returned
// receipt carries the new Redemption plus display names. On failure
// nothing is written.
func (c *Coordinator) Redeem(ctx context.Context, userID ledger.UserID, rewardItemID string, businessID ledger.BusinessID) (*Receipt, error) {
	now := c.now()

	var receipt *Receipt
	err := c.Store.WithRedemptionTx(ctx, func(s RedemptionStore) error {
		item, err := s.RewardItem(ctx, rewardItemID)
		if err != nil {
			return fmt.Errorf("load reward item: %w", err)
		}
		if item == nil {
			return ledger.ErrRewardNotFound
		}
		if !item.IsActive {
			return ledger.ErrRewardInactive
		}
		if item.Expired(now) {
			return ledger.ErrRewardExpired
		}

		if item.MaxRedemptions != nil {
			count, err := s.RedemptionCount(ctx, item.ID)
			if err != nil {
				return fmt.Errorf("count redemptions: %w", err)
			}
			if count >= *item.MaxRedemptions {
				return ledger.ErrRewardExhausted
			}
		}

		entries, err := s.EntriesForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		balance := ledger.Sum(entries)
		if balance.IsNegative() {
			// Correct operation can never produce this; halt the redemption
			// and surface to operators instead of attempting any fallback.
			ierr := &ledger.NegativeBalanceError{UserID: userID, Balance: balance}
			log.WithFields(log.Fields{
				"user_id": userID,
				"balance": balance.String(),
			}).Error("ledger integrity fault during redemption")
			return ierr
		}

		threshold := ledger.NewPoints(item.PointThreshold)
		if balance.LessThan(threshold) {
			return &ledger.InsufficientPointsError{
				UserID:    userID,
				Available: balance,
				Required:  threshold,
			}
		}

		redemption := Redemption{
			ID:             uuid.NewString(),
			UserID:         userID,
			RewardItemID:   item.ID,
			BusinessID:     businessID,
			PointsRedeemed: item.PointThreshold,
			CreatedAt:      now,
		}
		if err := s.InsertRedemption(ctx, redemption); err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}

		debit := ledger.Entry{
			ID:         ledger.EntryID(uuid.NewString()),
			UserID:     userID,
			Amount:     threshold.Neg(),
			SourceKind: ledger.SourceRedemption,
			SourceRef:  redemption.ID,
			BusinessID: businessID,
			CreatedAt:  now,
		}
		if err := s.Append(ctx, debit); err != nil {
			return fmt.Errorf("append debit: %w", err)
		}

		receipt = &Receipt{Redemption: redemption, RewardName: item.Name}
		if businessID != "" {
			// Read-only join for the confirmation screen; a missing row
			// leaves the name blank rather than failing the redemption.
			if b, err := s.Business(ctx, businessID); err == nil && b != nil {
				receipt.BusinessName = b.Name
			}
		}
		return nil
	})

	if err != nil {
		return nil, classify(err)
	}
	return receipt, nil
}

// classify maps transaction errors onto the engine's error taxonomy:
// domain failures pass through, anything else is a transient storage
// failure the caller may retry.
func classify(err error) error {
	if ledger.IsClientError(err) || ledger.IsNotFound(err) || errors.Is(err, ledger.ErrDataIntegrity) {
		return err
	}
	return &ledger.TransientError{Op: "redeem", Err: err}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
