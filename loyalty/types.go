/*
Package loyalty provides the Main Street loyalty domain on top of the
generic points ledger.

PURPOSE:
  Implements the patron-facing rules of the downtown rewards program:
  which activities earn points (award policy), and how points are
  exchanged for rewards at local businesses (redemption coordinator).

KEY CONCEPTS IN THIS FILE (types.go):
  - RewardItem:  A redeemable catalog entry with a point threshold and
                 optional constraints (active flag, expiration, cap)
  - Redemption:  One successful exchange of points for a reward, paired
                 1:1 with a debit ledger entry
  - Business:    A directory listing; referenced by entries, rewards,
                 and redemptions
  - Event:       Something patrons RSVP to and check in at

LIFECYCLE:
  Reward items and businesses are produced by owner-facing tooling that
  lives outside this engine; here they are read-only catalog rows. Only
  the redemption coordinator writes Redemption records.

SEE ALSO:
  - awards.go: Point values per activity
  - redeem.go: Atomic redemption
  - promotions.go: Multiplier promotions
*/
package loyalty

import (
	"time"

	"github.com/mainstreet/points-engine/ledger"
)

// =============================================================================
// REWARD CATALOG
// =============================================================================

// RewardItem is something a patron can redeem points for.
type RewardItem struct {
	ID             string
	Name           string
	Description    string
	PointThreshold int64             // minimum balance required to redeem
	BusinessID     ledger.BusinessID // optional scope
	IsActive       bool
	ExpirationDate *time.Time // nil = never expires
	MaxRedemptions *int       // nil = uncapped, across all users
	CreatedAt      time.Time
}

// Expired reports whether the reward's expiration date has passed.
func (r *RewardItem) Expired(at time.Time) bool {
	return r.ExpirationDate != nil && r.ExpirationDate.Before(at)
}

// =============================================================================
// REDEMPTION
// =============================================================================

// Redemption records one successful exchange of points for a reward.
// Immutable after creation; paired 1:1 with a debit ledger entry whose
// SourceRef is this redemption's ID.
type Redemption struct {
	ID             string
	UserID         ledger.UserID
	RewardItemID   string
	BusinessID     ledger.BusinessID // business where redeemed
	PointsRedeemed int64             // threshold snapshot at redemption time
	CreatedAt      time.Time
}

// Receipt is returned to the caller after a successful redemption.
// The names are read-only joins for confirmation display.
type Receipt struct {
	Redemption   Redemption
	RewardName   string
	BusinessName string
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Business is a downtown directory listing.
type Business struct {
	ID          ledger.BusinessID
	Name        string
	Description string
	Address     string
	Category    string
	CreatedAt   time.Time
}

// Event is a happening patrons RSVP to and check in at.
type Event struct {
	ID          string
	BusinessID  ledger.BusinessID
	Name        string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedAt   time.Time
}
