/*
Package ledger provides the core points-ledger engine.

PURPOSE:
  This package contains the types and algorithms for tracking loyalty
  points as an append-only ledger. A patron's balance is never stored
  directly - it is always derived by summing the ledger, which removes
  the lost-update class of bugs that a mutable points counter invites.

KEY CONCEPTS IN THIS FILE (types.go):
  - Points: A signed point quantity (earned positive, redeemed negative)
  - Entry: An immutable ledger record of one credit or debit
  - SourceKind: What produced the entry (check-in, RSVP, survey, ...)
  - Activity key: The (user, kind, ref) tuple that prevents double awards

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified or deleted, only appended
  2. Precision: Uses decimal.Decimal so sums and promotion multipliers
     never drift the way floats do
  3. Derivation: Balance is always computed from entries, never cached
     as authoritative state
  4. Idempotency: Credit entries carry an activity key so retries and
     double-clicks award at most once

USAGE:
  entry := ledger.Entry{
      ID:         ledger.EntryID(uuid.NewString()),
      UserID:     "user-123",
      Amount:     ledger.NewPoints(5),
      SourceKind: ledger.SourceCheckin,
      SourceRef:  "event-42",
  }

SEE ALSO:
  - ledger.go: Append semantics and duplicate-activity detection
  - balance.go: Balance derivation from entries
  - store.go: Persistence interfaces
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POINTS - Signed point quantity
// =============================================================================

// Points is a signed quantity of loyalty points. Credits are positive,
// debits negative. Backed by decimal so that ledger sums are exact and
// promotion multipliers (1.5x, 2x) apply without rounding drift.
type Points struct {
	value decimal.Decimal
}

func NewPoints(n int64) Points {
	return Points{value: decimal.NewFromInt(n)}
}

// ParsePoints parses a stored decimal string. Malformed input yields zero,
// matching how the stores treat unreadable rows.
func ParsePoints(s string) Points {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Points{value: decimal.Zero}
	}
	return Points{value: d}
}

func (p Points) Add(q Points) Points             { return Points{value: p.value.Add(q.value)} }
func (p Points) Sub(q Points) Points             { return Points{value: p.value.Sub(q.value)} }
func (p Points) Neg() Points                     { return Points{value: p.value.Neg()} }
func (p Points) Mul(s decimal.Decimal) Points    { return Points{value: p.value.Mul(s)} }
func (p Points) IsNegative() bool                { return p.value.IsNegative() }
func (p Points) IsPositive() bool                { return p.value.IsPositive() }
func (p Points) IsZero() bool                    { return p.value.IsZero() }
func (p Points) LessThan(q Points) bool          { return p.value.LessThan(q.value) }
func (p Points) GreaterThan(q Points) bool       { return p.value.GreaterThan(q.value) }
func (p Points) Equal(q Points) bool             { return p.value.Equal(q.value) }

// Floor truncates toward negative infinity. Awards with fractional
// multipliers are floored so a patron never earns partial points.
func (p Points) Floor() Points { return Points{value: p.value.Floor()} }

// Int64 returns the integer point value. Ledger amounts are whole by
// construction; the decimal backing exists for exact arithmetic.
func (p Points) Int64() int64 { return p.value.IntPart() }

func (p Points) String() string { return p.value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type BusinessID string
type EntryID string

// =============================================================================
// SOURCE KIND - What produced a ledger entry
// =============================================================================

type SourceKind string

const (
	SourceCheckin    SourceKind = "checkin"    // Checked in at an event (credit)
	SourceRSVP       SourceKind = "rsvp"       // RSVP'd to an event (credit)
	SourceSurvey     SourceKind = "survey"     // Completed a survey (credit)
	SourceRedemption SourceKind = "redemption" // Redeemed a reward (debit)
	SourceAdjustment SourceKind = "adjustment" // Manual correction
)

// IsCredit reports whether this kind is an activity credit, i.e. subject
// to the at-most-one-entry-per-activity invariant. Redemptions reference
// a unique redemption id each time and adjustments are operator-driven,
// so neither is deduped.
func (k SourceKind) IsCredit() bool {
	switch k {
	case SourceCheckin, SourceRSVP, SourceSurvey:
		return true
	}
	return false
}

// =============================================================================
// ENTRY - One immutable ledger record
// =============================================================================

type Entry struct {
	ID         EntryID
	UserID     UserID
	Amount     Points
	SourceKind SourceKind
	SourceRef  string     // originating activity: event id, survey id, redemption id
	BusinessID BusinessID // optional, for business-scoped entries
	CreatedAt  time.Time
}

// ActivityKey returns the dedupe key for credit entries, empty otherwise.
// At most one entry may ever exist per key.
func (e Entry) ActivityKey() string {
	if !e.SourceKind.IsCredit() {
		return ""
	}
	return ActivityKey(e.UserID, e.SourceKind, e.SourceRef)
}

func ActivityKey(userID UserID, kind SourceKind, sourceRef string) string {
	return fmt.Sprintf("%s|%s|%s", userID, kind, sourceRef)
}
