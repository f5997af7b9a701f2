/*
balance.go - Balance derivation

PURPOSE:
  Computes a patron's available points from the full ledger history.
  This answers the central question: "how many points do I have?"

KEY INSIGHT:
  Balance is a pure function of the entry sequence. Summation is
  order-insensitive, so the only requirement on reads is that every
  entry written before the read is included. No caching is required
  for correctness; an implementation may cache only if it invalidates
  on every append.

INTEGRITY:
  The redemption coordinator is the sole guard preventing overdraft,
  so a negative sum can only mean the ledger was corrupted outside the
  engine. When that happens the balance is still returned, together
  with a NegativeBalanceError for operators. It is never auto-corrected.

SEE ALSO:
  - ledger.go: Entry persistence
  - loyalty/redeem.go: The overdraft guard
*/
package ledger

import "context"

// =============================================================================
// BALANCE CALCULATOR
// =============================================================================

// BalanceCalculator derives balances from the ledger.
type BalanceCalculator struct {
	Ledger Ledger
}

func NewBalanceCalculator(l Ledger) *BalanceCalculator {
	return &BalanceCalculator{Ledger: l}
}

// BalanceOf returns the sum of all entry amounts for the user. If the sum
// is negative, the balance is returned alongside a NegativeBalanceError.
func (bc *BalanceCalculator) BalanceOf(ctx context.Context, userID UserID) (Points, error) {
	entries, err := bc.Ledger.EntriesForUser(ctx, userID)
	if err != nil {
		return Points{}, err
	}

	balance := Sum(entries)
	if balance.IsNegative() {
		return balance, &NegativeBalanceError{UserID: userID, Balance: balance}
	}
	return balance, nil
}

// Sum adds up entry amounts. Exposed so callers holding a transactional
// view of the entries (the redemption coordinator) can derive a balance
// without a second read.
func Sum(entries []Entry) Points {
	balance := NewPoints(0)
	for _, e := range entries {
		balance = balance.Add(e.Amount)
	}
	return balance
}
