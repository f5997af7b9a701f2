// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mainstreet/points-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	entries  map[ledger.UserID][]ledger.Entry
	activity map[string]ledger.EntryID
}

func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[ledger.UserID][]ledger.Entry),
		activity: make(map[string]ledger.EntryID),
	}
}

// Append adds a single entry. Append-only.
func (m *Memory) Append(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e)
}

func (m *Memory) appendLocked(e ledger.Entry) error {
	if key := e.ActivityKey(); key != "" {
		if _, dup := m.activity[key]; dup {
			return ledger.ErrDuplicateActivity
		}
		m.activity[key] = e.ID
	}

	entries := m.entries[e.UserID]

	// Binary search for the insertion point keeps reads sorted by CreatedAt.
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].CreatedAt.After(e.CreatedAt)
	})

	entries = append(entries, ledger.Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	m.entries[e.UserID] = entries
	return nil
}

func (m *Memory) EntriesForUser(_ context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Entry, len(m.entries[userID]))
	copy(result, m.entries[userID])
	return result, nil
}

func (m *Memory) HasActivity(_ context.Context, userID ledger.UserID, kind ledger.SourceKind, sourceRef string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.activity[ledger.ActivityKey(userID, kind, sourceRef)]
	return ok, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn while holding the store lock, simulating a transaction
// with a snapshot + rollback on error. The lock also serializes concurrent
// transactions, matching the SQLite store's behavior.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	entries  map[ledger.UserID][]ledger.Entry
	activity map[string]ledger.EntryID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	entries := make(map[ledger.UserID][]ledger.Entry, len(tm.entries))
	for k, v := range tm.entries {
		entries[k] = append([]ledger.Entry{}, v...)
	}
	activity := make(map[string]ledger.EntryID, len(tm.activity))
	for k, v := range tm.activity {
		activity[k] = v
	}
	return memorySnapshot{entries: entries, activity: activity}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.entries = s.entries
	tm.activity = s.activity
}

// txMemoryView operates on the parent without re-locking; the parent lock
// is held for the duration of WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, e ledger.Entry) error {
	return tv.parent.appendLocked(e)
}

func (tv *txMemoryView) EntriesForUser(_ context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	return tv.parent.entries[userID], nil
}

func (tv *txMemoryView) HasActivity(_ context.Context, userID ledger.UserID, kind ledger.SourceKind, sourceRef string) (bool, error) {
	_, ok := tv.parent.activity[ledger.ActivityKey(userID, kind, sourceRef)]
	return ok, nil
}
