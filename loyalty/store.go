/*
store.go - Storage interfaces for the loyalty domain

PURPOSE:
  Defines what the award policy and redemption coordinator need from
  persistence, beyond the ledger.Store the engine already requires.
  The SQLite store implements all of these.

THE REDEMPTION TRANSACTION:
  Redemption is the one multi-write operation in the system: validate
  the reward, count existing redemptions, derive the balance, then
  insert a Redemption row AND a debit ledger entry. All of it runs
  inside WithRedemptionTx so the writes commit together or not at all,
  and so the exhausted-check and overdraft-check cannot race another
  redemption of the same reward or by the same user.

SEE ALSO:
  - redeem.go: The coordinator using these interfaces
  - store/sqlite/sqlite.go: Production implementation
*/
package loyalty

import (
	"context"
	"time"

	"github.com/mainstreet/points-engine/ledger"
)

// =============================================================================
// CATALOG STORE - Read-only catalog access
// =============================================================================

// CatalogStore reads the reward catalog and directory. The engine never
// writes these tables; rows come from owner tooling and demo seeds.
type CatalogStore interface {
	RewardItem(ctx context.Context, id string) (*RewardItem, error) // nil when absent
	ListRewardItems(ctx context.Context) ([]RewardItem, error)
	Business(ctx context.Context, id ledger.BusinessID) (*Business, error) // nil when absent
	ListBusinesses(ctx context.Context) ([]Business, error)
	ListEvents(ctx context.Context) ([]Event, error)
}

// =============================================================================
// REDEMPTION STORE - Operations available inside a redemption transaction
// =============================================================================

// RedemptionStore is the view a redemption works against. Inside
// WithRedemptionTx every method observes and mutates the same database
// transaction.
type RedemptionStore interface {
	RewardItem(ctx context.Context, id string) (*RewardItem, error)
	Business(ctx context.Context, id ledger.BusinessID) (*Business, error)
	RedemptionCount(ctx context.Context, rewardItemID string) (int, error)
	InsertRedemption(ctx context.Context, r Redemption) error
	EntriesForUser(ctx context.Context, userID ledger.UserID) ([]ledger.Entry, error)
	Append(ctx context.Context, e ledger.Entry) error
}

// TxRedemptionStore opens atomic redemption transactions.
type TxRedemptionStore interface {
	RedemptionStore

	// WithRedemptionTx executes fn within a transaction serialized against
	// all other writers. If fn returns an error, nothing is committed.
	WithRedemptionTx(ctx context.Context, fn func(RedemptionStore) error) error
}

// =============================================================================
// REDEMPTION HISTORY
// =============================================================================

// RedemptionHistory lists a user's past redemptions (read-only).
type RedemptionHistory interface {
	RedemptionsForUser(ctx context.Context, userID ledger.UserID) ([]Redemption, error)
}

// =============================================================================
// PROMOTION SOURCE
// =============================================================================

// PromotionSource answers "what award multiplier applies at this business
// right now?". A nil source means no promotions (multiplier 1).
type PromotionSource interface {
	// MultiplierAt returns the multiplier for the business at the given
	// time. 1 when no promotion is running.
	MultiplierAt(ctx context.Context, businessID ledger.BusinessID, at time.Time) (Multiplier, error)
}
