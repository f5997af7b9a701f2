/*
promotions.go - Double-points promotions

PURPOSE:
  Business owners run limited-time promotions ("double points this
  Saturday"). A promotion scales activity awards earned at that business
  while its window is open. Promotions never affect redemption costs.

SEMANTICS:
  - Awards are scaled by the highest multiplier active at the business
    at award time; overlapping promotions do not stack.
  - Scaled awards are floored to whole points.
  - Promotion management is owner tooling outside this engine; rows come
    from seeds and demo scenarios.

SEE ALSO:
  - awards.go: Applies the multiplier to credit entries
*/
package loyalty

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mainstreet/points-engine/ledger"
)

// Multiplier scales an award amount. 1 means no promotion.
type Multiplier = decimal.Decimal

// NoPromotion is the identity multiplier.
var NoPromotion = decimal.NewFromInt(1)

// =============================================================================
// PROMOTION
// =============================================================================

// Promotion is a time-windowed award multiplier for one business.
type Promotion struct {
	ID         string
	BusinessID ledger.BusinessID
	Name       string // e.g. "Double Points Saturday"
	Multiplier Multiplier
	StartsAt   time.Time
	EndsAt     time.Time
	CreatedAt  time.Time
}

// ActiveAt reports whether the promotion window covers the given time.
func (p *Promotion) ActiveAt(at time.Time) bool {
	return !at.Before(p.StartsAt) && !at.After(p.EndsAt)
}

// =============================================================================
// STATIC PROMOTIONS - Fixed in-memory source (tests/dev)
// =============================================================================

// StaticPromotions serves promotions from a fixed slice.
type StaticPromotions struct {
	Promotions []Promotion
}

func (s *StaticPromotions) MultiplierAt(_ context.Context, businessID ledger.BusinessID, at time.Time) (Multiplier, error) {
	best := NoPromotion
	for i := range s.Promotions {
		p := &s.Promotions[i]
		if p.BusinessID != businessID || !p.ActiveAt(at) {
			continue
		}
		if p.Multiplier.GreaterThan(best) {
			best = p.Multiplier
		}
	}
	return best, nil
}
