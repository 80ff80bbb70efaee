// Package sqlite provides SQLite-based persistent storage for the QOR ledgers.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/qor-network/qor/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.Store.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/ledger.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "ledger.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer. Callers must never touch d.db while inside a tx.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Registry
		`CREATE TABLE IF NOT EXISTS robots (
			id            TEXT PRIMARY KEY,
			id_hash       TEXT NOT NULL,
			owner         TEXT NOT NULL,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			capabilities  TEXT NOT NULL DEFAULT '[]',
			metadata_uri  TEXT NOT NULL DEFAULT '',
			stake         INTEGER NOT NULL,
			reputation    INTEGER NOT NULL DEFAULT 0,
			registered_at INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_robots_owner_name ON robots(owner, name)`,

		// Market
		`CREATE TABLE IF NOT EXISTS tasks (
			id                 TEXT PRIMARY KEY,
			robot_id           TEXT NOT NULL,
			title              TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			waypoints          TEXT NOT NULL DEFAULT '[]',
			deadline           INTEGER NOT NULL,
			required_score     INTEGER NOT NULL,
			yes_pool           INTEGER NOT NULL DEFAULT 0,
			no_pool            INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL,
			solution_uri       TEXT,
			optimization_score INTEGER,
			evidence_uri       TEXT,
			success            BOOLEAN,
			created_at         INTEGER NOT NULL,
			resolved_at        INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_robot_status ON tasks(robot_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL REFERENCES tasks(id),
			user       TEXT NOT NULL,
			side       TEXT NOT NULL,
			shares     INTEGER NOT NULL,
			cost       INTEGER NOT NULL,
			redeemed   BOOLEAN NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_task ON positions(task_id, user)`,

		// Governance
		`CREATE TABLE IF NOT EXISTS proposals (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			action      TEXT NOT NULL DEFAULT '',
			proposer    TEXT NOT NULL,
			yes_votes   INTEGER NOT NULL DEFAULT 0,
			no_votes    INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			executed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status)`,

		`CREATE TABLE IF NOT EXISTS votes (
			proposal_id TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
			voter       TEXT NOT NULL,
			support     BOOLEAN NOT NULL,
			weight      INTEGER NOT NULL,
			cast_at     INTEGER NOT NULL,
			PRIMARY KEY (proposal_id, voter)
		)`,

		// Double-entry journal of stake, trade and payout movements
		`CREATE TABLE IF NOT EXISTS credit_ledger (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			type        TEXT NOT NULL,
			entry_type  TEXT NOT NULL,
			account     TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			ref         TEXT,
			description TEXT,
			balance     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_account ON credit_ledger(account)`,

		// Outcomes of keyed mutating calls
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key         TEXT PRIMARY KEY,
			operation   TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			response    BLOB NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// Update runs fn in a read-write transaction.
func (d *DB) Update(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (d *DB) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()
	return fn(&tx{tx: sqlTx})
}

// tx implements domain.Tx over a *sql.Tx.
type tx struct {
	tx *sql.Tx
}

var _ domain.Tx = (*tx)(nil)

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func unixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNano(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func affectedOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
