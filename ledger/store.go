/*
store.go - Persistence interface for ledger entries

PURPOSE:
  Defines the interface between the engine and the database. The Store
  persists entries while preserving append-only semantics. Implementations
  exist for SQLite (production) and in-memory (tests/dev).

APPEND-ONLY CONTRACT:
  - Append(): the ONLY write operation
  - NO Update() or Delete() methods exist
  - Corrections are made via adjustment entries, never edits

DUPLICATE ENFORCEMENT:
  A credit entry's activity key (user, source kind, source ref) must be
  unique. The Store is the authoritative guard: under concurrent appends
  of the same key, exactly one write succeeds and the loser observes
  ErrDuplicateActivity - not a generic error. SQLite enforces this with
  a partial unique index; the memory store with a key map under its lock.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite store
  - ledger/store/memory.go: In-memory store for tests

SEE ALSO:
  - ledger.go: Higher-level Ledger using Store
*/
package ledger

import "context"

// =============================================================================
// STORE - Entry persistence (append-only)
// =============================================================================

// Store handles persistence of ledger entries.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists an entry. Returns ErrDuplicateActivity if a credit
	// entry with the same activity key already exists. This is the ONLY
	// write operation.
	Append(ctx context.Context, e Entry) error

	// EntriesForUser returns all entries for a user, ordered by CreatedAt
	// ascending. A fresh query each call; no cursor state is retained.
	EntriesForUser(ctx context.Context, userID UserID) ([]Entry, error)

	// HasActivity checks whether a credit entry exists for the activity key.
	HasActivity(ctx context.Context, userID UserID, kind SourceKind, sourceRef string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic multi-write operations
// =============================================================================

// TxStore wraps Store with transaction support. Use this when multiple
// writes must commit together or not at all.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
