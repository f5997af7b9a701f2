/*
ledger.go - Append-only points ledger

PURPOSE:
  The Ledger is the immutable source of truth for every point a patron
  earns or spends. Check-ins, RSVPs, surveys, redemptions, and manual
  adjustments are all recorded here. Balance is always computed by
  summing entries - there is no separate "points" column to get out
  of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, entries cannot be modified
  3. AT-MOST-ONCE AWARDS: One credit entry per (user, kind, source ref)
  4. DERIVED BALANCE: The sum of a user's entries IS the balance

WHY APPEND-ONLY?
  - Audit trail: You can always explain how a balance got where it is
  - Debugging: "Why is my balance X?" -> read the entry history
  - Correctness: No risk of a lost update corrupting a counter

CORRECTIONS:
  Mistakes are fixed with an adjustment entry of the opposite sign.
  Both the original and the adjustment remain in the ledger.

EXAMPLE FLOW:
  1. Patron checks in at the farmers market: +5 (checkin, event-12)
  2. Patron retries the check-in request:    rejected, already awarded
  3. Patron completes a survey:              +25 (survey, survey-3)
  4. Patron redeems a free coffee:           -25 (redemption, red-9f2)

  Ledger: [+5, +25, -25] = 5 points

SEE ALSO:
  - store.go: Low-level persistence interface
  - balance.go: Balance derivation
*/
package ledger

import "context"

// =============================================================================
// LEDGER - Append-only entry log
// =============================================================================

// Ledger is the source of truth for all point changes.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete. EVER.
//   - At most one credit entry per activity key.
type Ledger interface {
	// Append adds an entry. Fails with ErrDuplicateActivity if a credit
	// entry with the same activity key exists. This is the ONLY write.
	Append(ctx context.Context, e Entry) error

	// EntriesForUser returns all entries for a user, chronologically.
	// Read-only.
	EntriesForUser(ctx context.Context, userID UserID) ([]Entry, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

// Append writes an entry. For credit kinds it checks the activity key
// first so the common double-submit case is caught without touching the
// write path; the Store's own uniqueness guard remains authoritative for
// two appends racing past this check.
func (l *DefaultLedger) Append(ctx context.Context, e Entry) error {
	if e.SourceKind.IsCredit() {
		exists, err := l.Store.HasActivity(ctx, e.UserID, e.SourceKind, e.SourceRef)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateActivity
		}
	}
	return l.Store.Append(ctx, e)
}

func (l *DefaultLedger) EntriesForUser(ctx context.Context, userID UserID) ([]Entry, error) {
	return l.Store.EntriesForUser(ctx, userID)
}
