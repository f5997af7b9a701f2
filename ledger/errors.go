/*
errors.go - Centralized error types for the points engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; structured errors carry
  context and unwrap to their sentinel.

ERROR CATEGORIES:
  1. Award errors      - duplicate activity, invalid award value
  2. Redemption errors - missing/inactive/expired/exhausted rewards,
                         insufficient points
  3. Integrity errors  - a negative derived balance (should never happen)
  4. Transient errors  - storage hiccups that are safe to retry

USAGE:
  if errors.Is(err, ledger.ErrDuplicateActivity) {
      // already awarded - benign
  }

  var short *ledger.InsufficientPointsError
  if errors.As(err, &short) {
      fmt.Printf("need %s more points", short.Shortfall)
  }

SEE ALSO:
  - ledger.go: Returns ErrDuplicateActivity on double awards
  - balance.go: Returns NegativeBalanceError on integrity faults
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateActivity is returned when a credit entry already exists for
	// the same (user, source kind, source ref). Expected on retries and
	// double-submits; callers treat it as "already awarded", not a failure.
	ErrDuplicateActivity = errors.New("activity already awarded")

	// ErrInvalidAward is returned when an award value is negative or
	// otherwise not a valid point amount.
	ErrInvalidAward = errors.New("invalid award amount")

	// ErrRewardNotFound is returned when a referenced reward item doesn't exist.
	ErrRewardNotFound = errors.New("reward item not found")

	// ErrRewardInactive is returned when redeeming a deactivated reward.
	ErrRewardInactive = errors.New("reward item is not active")

	// ErrRewardExpired is returned when redeeming past the reward's expiration.
	ErrRewardExpired = errors.New("reward item has expired")

	// ErrRewardExhausted is returned when a reward's redemption cap is reached.
	ErrRewardExhausted = errors.New("reward item redemption limit reached")

	// ErrInsufficientPoints is returned when a balance is below the threshold.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrTransientFailure marks a storage-layer failure that is safe to retry;
	// duplicate detection makes the award and redemption flows idempotent.
	ErrTransientFailure = errors.New("transient storage failure")

	// ErrDataIntegrity marks a state that correct operation can never produce,
	// such as a negative derived balance. Surfaced to operators, never retried.
	ErrDataIntegrity = errors.New("ledger integrity fault")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError reports how far a balance falls short of a threshold.
type InsufficientPointsError struct {
	UserID    UserID
	Available Points
	Required  Points
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: available %s, required %s",
		e.Available, e.Required)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// Shortfall returns how many more points the user needs.
func (e *InsufficientPointsError) Shortfall() Points {
	return e.Required.Sub(e.Available)
}

// NegativeBalanceError reports a derived balance below zero. The redemption
// coordinator is the sole guard against overdraft, so a negative sum means
// the ledger was corrupted outside the engine. Reported, never auto-corrected.
type NegativeBalanceError struct {
	UserID  UserID
	Balance Points
}

func (e *NegativeBalanceError) Error() string {
	return fmt.Sprintf("negative balance %s for user %s", e.Balance, e.UserID)
}

func (e *NegativeBalanceError) Unwrap() error { return ErrDataIntegrity }

// TransientError wraps an underlying storage failure.
type TransientError struct {
	Op  string // operation that failed, e.g. "append", "redeem"
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return ErrTransientFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}

// IsClientError returns true if the error is due to the caller's request
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrRewardInactive) ||
		errors.Is(err, ErrRewardExpired) ||
		errors.Is(err, ErrRewardExhausted) ||
		errors.Is(err, ErrDuplicateActivity) ||
		errors.Is(err, ErrInvalidAward)
}

// IsNotFound returns true if the error indicates a missing reward item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRewardNotFound)
}
