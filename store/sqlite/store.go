/*
Package sqlite provides the SQLite-backed persistence for the engine.

PURPOSE:
  Implements every store contract the engine components declare:
    tracking.EntryStore       entries.go
    reconcile.Store           reconciliations.go
    leavegrant.SettingStore   settings.go
    leavegrant.MemberStore    members.go
    ledger.Ledger             ledger.go (append-only)
  plus calculation-rule persistence (rules.go).

INVARIANTS LIVE IN THE SCHEMA:
  Partial unique indexes back the engine's invariants even if a caller
  bypasses the transactional checks:
  - one running entry per user        (entries WHERE end_time IS NULL)
  - one active rule per workspace     (calculation_rules WHERE is_active)
  - one enabled setting per workspace (leave_settings WHERE enabled)
  - one reconciliation per (user, workspace, year, month)
  - unique ledger idempotency key
  UNIQUE violations are translated to the engine's error kinds.

CONCURRENCY:
  Each domain facet exposes WithTx, which serializes on a store-wide
  mutex and runs the callback against a database transaction: the
  read-then-write checks inside are atomic. WithTx must not be nested.
  Single-statement operations go straight to the pooled connection.

WAL MODE:
  The database is opened with WAL and foreign keys on, as usual:
  readers don't block, one writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/timekeeping.db")  // or ":memory:"
  manager := tracking.NewManager(store.Entries(), nil, nil)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns the database handle; domain facets share it.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (and migrates) a SQLite database at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// Every pooled connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// querier is satisfied by both *sql.DB and *sql.Tx, so facet methods run
// identically inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx serializes writers and runs fn inside a database transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Work-time entries
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT,
		title TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		billable BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one running entry per user
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_single_running
		ON entries(user_id) WHERE end_time IS NULL;

	-- Overlap checks and month sums (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_user_start
		ON entries(user_id, start_time);

	-- Working-time policies
	CREATE TABLE IF NOT EXISTS calculation_rules (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		title TEXT NOT NULL,
		working_days INTEGER NOT NULL,
		working_hours TEXT NOT NULL,
		week_days TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		is_overtime BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: exactly one active rule per workspace
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rules_single_active
		ON calculation_rules(workspace_id) WHERE is_active = 1;

	-- Approved leave days (ingested from the leave system)
	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		date TEXT NOT NULL,
		type_key TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		UNIQUE(user_id, date, type_key)
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_user_date
		ON leaves(user_id, date);

	-- Monthly reconciliations, one row per (user, workspace, year, month)
	CREATE TABLE IF NOT EXISTS reconciliations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		ideal_working_days INTEGER NOT NULL,
		ideal_working_hours TEXT NOT NULL,
		user_working_seconds INTEGER NOT NULL,
		user_working_days TEXT NOT NULL,
		total_leaves INTEGER NOT NULL,
		paid_leaves INTEGER NOT NULL,
		unpaid_leaves INTEGER NOT NULL,
		overtime_seconds INTEGER NOT NULL,
		undertime_seconds INTEGER NOT NULL,
		overridden BOOLEAN NOT NULL DEFAULT FALSE,
		overtime_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		is_saved BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, workspace_id, year, month)
	);

	-- Auto-add leave balance settings
	CREATE TABLE IF NOT EXISTS leave_settings (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		leaves TEXT NOT NULL,
		recurrence TEXT NOT NULL,
		frequency TEXT,
		anchor_day INTEGER NOT NULL DEFAULT 1,
		next_execution_date TEXT,
		last_execution_date TEXT,
		executed BOOLEAN NOT NULL DEFAULT FALSE,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one enabled setting per workspace
	CREATE UNIQUE INDEX IF NOT EXISTS idx_settings_single_enabled
		ON leave_settings(workspace_id) WHERE enabled = 1;

	CREATE INDEX IF NOT EXISTS idx_settings_due
		ON leave_settings(enabled, next_execution_date);

	-- Workspace members (grant recipients)
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_workspace
		ON members(workspace_id, active);

	-- Comp-time / leave-balance ledger (append-only)
	CREATE TABLE IF NOT EXISTS ledger_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		leave_type TEXT,
		amount_seconds INTEGER NOT NULL DEFAULT 0,
		amount_days TEXT NOT NULL DEFAULT '0',
		idempotency_key TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_user
		ON ledger_transactions(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ERROR TRANSLATION HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// constraintTarget reports whether the UNIQUE violation touches the given
// index or column name.
func constraintTarget(err error, name string) bool {
	return err != nil && strings.Contains(err.Error(), name)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
