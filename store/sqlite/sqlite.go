/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface the engine and loyalty domain
  need (ledger.Store, ledger.TxStore, loyalty.CatalogStore,
  loyalty.TxRedemptionStore, loyalty.RedemptionHistory,
  loyalty.PromotionSource) on a single embedded database. The same
  patterns port to PostgreSQL with only dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements touch ledger_entries
  - Corrections happen via adjustment entries only

KEY TABLES:
  ledger_entries: Immutable ledger of all point credits and debits
  reward_items:   Redeemable catalog (read-only to the engine)
  redemptions:    One row per successful redemption
  businesses:     Downtown directory listings
  events:         Happenings patrons RSVP to and check in at
  promotions:     Time-windowed award multipliers

THE ANTI-DOUBLE-AWARD INDEX:
  idx_ledger_activity is a partial UNIQUE index over
  (user_id, source_kind, source_ref) restricted to credit kinds. Two
  concurrent appends of the same activity resolve here: one row wins,
  the loser maps to ledger.ErrDuplicateActivity.

CONCURRENCY:
  A store-level RWMutex serializes writers; WithRedemptionTx holds the
  write lock for the whole transaction, which is what closes the
  max-redemptions and overdraft races. Transaction views call unlocked
  internals so they never re-enter the lock.

WAL MODE:
  SQLite is opened with WAL for better read concurrency and crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/points.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  led := ledger.NewLedger(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - loyalty/store.go: Domain storage contracts
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/mainstreet/points-engine/ledger"
	"github.com/mainstreet/points-engine/loyalty"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Interface compliance.
var (
	_ ledger.Store              = (*Store)(nil)
	_ ledger.TxStore            = (*Store)(nil)
	_ loyalty.CatalogStore      = (*Store)(nil)
	_ loyalty.TxRedemptionStore = (*Store)(nil)
	_ loyalty.RedemptionHistory = (*Store)(nil)
	_ loyalty.PromotionSource   = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer, and ":memory:" is per-connection: a second
	// pooled connection would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		source_ref TEXT NOT NULL,
		business_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_user
		ON ledger_entries(user_id, created_at);

	-- CRITICAL: at most one credit entry per activity. Two concurrent
	-- awards of the same (user, kind, ref) resolve here; the loser gets
	-- a constraint violation mapped to ErrDuplicateActivity.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_activity
		ON ledger_entries(user_id, source_kind, source_ref)
		WHERE source_kind IN ('checkin', 'rsvp', 'survey');

	-- Reward catalog (read-only to the engine)
	CREATE TABLE IF NOT EXISTS reward_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		point_threshold INTEGER NOT NULL,
		business_id TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		expiration_date TEXT,
		max_redemptions INTEGER,
		created_at TEXT NOT NULL
	);

	-- Redemptions (one row per successful redemption)
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reward_item_id TEXT NOT NULL,
		business_id TEXT,
		points_redeemed INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_reward
		ON redemptions(reward_item_id);
	CREATE INDEX IF NOT EXISTS idx_redemptions_user
		ON redemptions(user_id, created_at);

	-- Directory
	CREATE TABLE IF NOT EXISTS businesses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		address TEXT,
		category TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		business_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_business
		ON events(business_id);

	-- Promotions (award multipliers)
	CREATE TABLE IF NOT EXISTS promotions (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		multiplier TEXT NOT NULL,
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_promotions_business
		ON promotions(business_id, starts_at, ends_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so entry and catalog
// operations share one implementation inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// Append adds an entry to the ledger.
func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, q querier, e ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries
		(id, user_id, amount, source_kind, source_ref, business_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		string(e.ID),
		string(e.UserID),
		e.Amount.String(),
		string(e.SourceKind),
		e.SourceRef,
		nullString(string(e.BusinessID)),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateActivity
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// EntriesForUser returns all entries for a user, oldest first.
func (s *Store) EntriesForUser(ctx context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesForUser(ctx, s.db, userID)
}

func entriesForUser(ctx context.Context, q querier, userID ledger.UserID) ([]ledger.Entry, error) {
	query := `
		SELECT id, user_id, amount, source_kind, source_ref, business_id, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e          ledger.Entry
			amount     string
			businessID sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.SourceKind, &e.SourceRef, &businessID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Amount = ledger.ParsePoints(amount)
		e.BusinessID = ledger.BusinessID(businessID.String)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HasActivity checks whether a credit entry exists for the activity key.
func (s *Store) HasActivity(ctx context.Context, userID ledger.UserID, kind ledger.SourceKind, sourceRef string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasActivity(ctx, s.db, userID, kind, sourceRef)
}

func hasActivity(ctx context.Context, q querier, userID ledger.UserID, kind ledger.SourceKind, sourceRef string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE user_id = ? AND source_kind = ? AND source_ref = ?",
		string(userID), string(kind), sourceRef,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// TRANSACTIONAL STORES (ledger.TxStore, loyalty.TxRedemptionStore)
// =============================================================================

// WithTx executes fn within a database transaction over the ledger.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txView{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// WithRedemptionTx executes fn within a transaction that can read the
// catalog, count redemptions, and write both a redemption row and a
// debit entry. The store write lock is held throughout, serializing it
// against every other writer.
func (s *Store) WithRedemptionTx(ctx context.Context, fn func(loyalty.RedemptionStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txView{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txView implements ledger.Store and loyalty.RedemptionStore against an
// open transaction. It uses unlocked internals; the parent's lock is
// already held.
type txView struct {
	tx *sql.Tx
}

func (tv *txView) Append(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, tv.tx, e)
}

func (tv *txView) EntriesForUser(ctx context.Context, userID ledger.UserID) ([]ledger.Entry, error) {
	return entriesForUser(ctx, tv.tx, userID)
}

func (tv *txView) HasActivity(ctx context.Context, userID ledger.UserID, kind ledger.SourceKind, sourceRef string) (bool, error) {
	return hasActivity(ctx, tv.tx, userID, kind, sourceRef)
}

func (tv *txView) RewardItem(ctx context.Context, id string) (*loyalty.RewardItem, error) {
	return rewardItem(ctx, tv.tx, id)
}

func (tv *txView) Business(ctx context.Context, id ledger.BusinessID) (*loyalty.Business, error) {
	return business(ctx, tv.tx, id)
}

func (tv *txView) RedemptionCount(ctx context.Context, rewardItemID string) (int, error) {
	return redemptionCount(ctx, tv.tx, rewardItemID)
}

func (tv *txView) InsertRedemption(ctx context.Context, r loyalty.Redemption) error {
	return insertRedemption(ctx, tv.tx, r)
}

// =============================================================================
// REWARD CATALOG
// =============================================================================

// SaveRewardItem upserts a catalog row. Owner tooling and demo seeds only;
// the engine itself never calls this.
func (s *Store) SaveRewardItem(ctx context.Context, item loyalty.RewardItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reward_items
		(id, name, description, point_threshold, business_id, is_active, expiration_date, max_redemptions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			point_threshold = excluded.point_threshold,
			business_id = excluded.business_id,
			is_active = excluded.is_active,
			expiration_date = excluded.expiration_date,
			max_redemptions = excluded.max_redemptions
	`

	var expiration sql.NullString
	if item.ExpirationDate != nil {
		expiration = sql.NullString{String: item.ExpirationDate.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	var maxRedemptions sql.NullInt64
	if item.MaxRedemptions != nil {
		maxRedemptions = sql.NullInt64{Int64: int64(*item.MaxRedemptions), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.Name, item.Description, item.PointThreshold,
		nullString(string(item.BusinessID)), item.IsActive,
		expiration, maxRedemptions,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// RewardItem retrieves a reward by ID. Returns nil when absent.
func (s *Store) RewardItem(ctx context.Context, id string) (*loyalty.RewardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rewardItem(ctx, s.db, id)
}

const rewardItemColumns = `id, name, description, point_threshold, business_id, is_active, expiration_date, max_redemptions, created_at`

func rewardItem(ctx context.Context, q querier, id string) (*loyalty.RewardItem, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+rewardItemColumns+" FROM reward_items WHERE id = ?", id)

	item, err := scanRewardItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListRewardItems returns the full catalog, newest first.
func (s *Store) ListRewardItems(ctx context.Context) ([]loyalty.RewardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+rewardItemColumns+" FROM reward_items ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []loyalty.RewardItem
	for rows.Next() {
		item, err := scanRewardItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanRewardItem(scan func(dest ...any) error) (*loyalty.RewardItem, error) {
	var (
		item           loyalty.RewardItem
		description    sql.NullString
		businessID     sql.NullString
		expiration     sql.NullString
		maxRedemptions sql.NullInt64
		createdAt      string
	)

	err := scan(&item.ID, &item.Name, &description, &item.PointThreshold,
		&businessID, &item.IsActive, &expiration, &maxRedemptions, &createdAt)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	item.BusinessID = ledger.BusinessID(businessID.String)
	if expiration.Valid {
		t, _ := time.Parse(time.RFC3339Nano, expiration.String)
		item.ExpirationDate = &t
	}
	if maxRedemptions.Valid {
		n := int(maxRedemptions.Int64)
		item.MaxRedemptions = &n
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &item, nil
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func insertRedemption(ctx context.Context, q querier, r loyalty.Redemption) error {
	query := `
		INSERT INTO redemptions
		(id, user_id, reward_item_id, business_id, points_redeemed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		r.ID, string(r.UserID), r.RewardItemID,
		nullString(string(r.BusinessID)), r.PointsRedeemed,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert redemption: %w", err)
	}
	return nil
}

func redemptionCount(ctx context.Context, q querier, rewardItemID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM redemptions WHERE reward_item_id = ?",
		rewardItemID,
	).Scan(&count)
	return count, err
}

// RedemptionCount returns the total redemptions of a reward across all users.
func (s *Store) RedemptionCount(ctx context.Context, rewardItemID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return redemptionCount(ctx, s.db, rewardItemID)
}

// InsertRedemption records a redemption outside a transaction. Prefer
// WithRedemptionTx; this exists for seeds and tests.
func (s *Store) InsertRedemption(ctx context.Context, r loyalty.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRedemption(ctx, s.db, r)
}

// RedemptionsForUser returns a user's redemption history, newest first.
func (s *Store) RedemptionsForUser(ctx context.Context, userID ledger.UserID) ([]loyalty.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, reward_item_id, business_id, points_redeemed, created_at
		FROM redemptions
		WHERE user_id = ?
		ORDER BY created_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var redemptions []loyalty.Redemption
	for rows.Next() {
		var (
			r          loyalty.Redemption
			businessID sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.RewardItemID, &businessID, &r.PointsRedeemed, &createdAt); err != nil {
			return nil, err
		}
		r.BusinessID = ledger.BusinessID(businessID.String)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		redemptions = append(redemptions, r)
	}
	return redemptions, rows.Err()
}

// =============================================================================
// DIRECTORY
// =============================================================================

// SaveBusiness upserts a directory listing.
func (s *Store) SaveBusiness(ctx context.Context, b loyalty.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO businesses (id, name, description, address, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			address = excluded.address,
			category = excluded.category
	`

	_, err := s.db.ExecContext(ctx, query,
		string(b.ID), b.Name, b.Description, b.Address, b.Category,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Business retrieves a listing by ID. Returns nil when absent.
func (s *Store) Business(ctx context.Context, id ledger.BusinessID) (*loyalty.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return business(ctx, s.db, id)
}

func business(ctx context.Context, q querier, id ledger.BusinessID) (*loyalty.Business, error) {
	var (
		b           loyalty.Business
		description sql.NullString
		address     sql.NullString
		category    sql.NullString
		createdAt   string
	)

	err := q.QueryRowContext(ctx,
		"SELECT id, name, description, address, category, created_at FROM businesses WHERE id = ?",
		string(id),
	).Scan(&b.ID, &b.Name, &description, &address, &category, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.Description = description.String
	b.Address = address.String
	b.Category = category.String
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &b, nil
}

// ListBusinesses returns all listings ordered by name.
func (s *Store) ListBusinesses(ctx context.Context) ([]loyalty.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, address, category, created_at FROM businesses ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var businesses []loyalty.Business
	for rows.Next() {
		var (
			b           loyalty.Business
			description sql.NullString
			address     sql.NullString
			category    sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&b.ID, &b.Name, &description, &address, &category, &createdAt); err != nil {
			return nil, err
		}
		b.Description = description.String
		b.Address = address.String
		b.Category = category.String
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

// SaveEvent upserts an event.
func (s *Store) SaveEvent(ctx context.Context, e loyalty.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO events (id, business_id, name, description, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_id = excluded.business_id,
			name = excluded.name,
			description = excluded.description,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, nullString(string(e.BusinessID)), e.Name, e.Description,
		e.StartsAt.UTC().Format(time.RFC3339Nano),
		e.EndsAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListEvents returns all events ordered by start time.
func (s *Store) ListEvents(ctx context.Context) ([]loyalty.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, business_id, name, description, starts_at, ends_at, created_at FROM events ORDER BY starts_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []loyalty.Event
	for rows.Next() {
		var (
			e           loyalty.Event
			businessID  sql.NullString
			description sql.NullString
			startsAt    string
			endsAt      string
			createdAt   string
		)
		if err := rows.Scan(&e.ID, &businessID, &e.Name, &description, &startsAt, &endsAt, &createdAt); err != nil {
			return nil, err
		}
		e.BusinessID = ledger.BusinessID(businessID.String)
		e.Description = description.String
		e.StartsAt, _ = time.Parse(time.RFC3339Nano, startsAt)
		e.EndsAt, _ = time.Parse(time.RFC3339Nano, endsAt)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// PROMOTIONS
// =============================================================================

// SavePromotion upserts a promotion.
func (s *Store) SavePromotion(ctx context.Context, p loyalty.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO promotions (id, business_id, name, multiplier, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_id = excluded.business_id,
			name = excluded.name,
			multiplier = excluded.multiplier,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, string(p.BusinessID), p.Name, p.Multiplier.String(),
		p.StartsAt.UTC().Format(time.RFC3339Nano),
		p.EndsAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// MultiplierAt returns the highest multiplier active at the business at
// the given time, or 1 when no promotion is running. Overlapping
// promotions do not stack.
func (s *Store) MultiplierAt(ctx context.Context, businessID ledger.BusinessID, at time.Time) (loyalty.Multiplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts := at.UTC().Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx,
		"SELECT multiplier FROM promotions WHERE business_id = ? AND starts_at <= ? AND ends_at >= ?",
		string(businessID), ts, ts,
	)
	if err != nil {
		return loyalty.NoPromotion, err
	}
	defer rows.Close()

	best := loyalty.NoPromotion
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return loyalty.NoPromotion, err
		}
		m, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		if m.GreaterThan(best) {
			best = m
		}
	}
	return best, rows.Err()
}

// =============================================================================
// DEV/DEMO RESET
// =============================================================================

// Reset clears every table. Demo scenarios only; the production ledger
// is append-only and never deleted from.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"ledger_entries", "redemptions", "reward_items",
		"promotions", "events", "businesses",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
