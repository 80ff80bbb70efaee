package sqlite

import (
	"database/sql"
	"errors"

	"github.com/qor-network/qor/internal/domain"
)

// ─── Credit Ledger ──────────────────────────────────────────────────────────

// InsertLedgerEntry adds a credit ledger entry.
func (t *tx) InsertLedgerEntry(entry domain.LedgerEntry) (int64, error) {
	result, err := t.tx.Exec(
		`INSERT INTO credit_ledger (timestamp, type, entry_type, account, amount, ref, description, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		unixNano(entry.Timestamp), string(entry.Type), string(entry.EntryType),
		entry.Account, entry.Amount, nullStr(entry.Ref), nullStr(entry.Description), entry.Balance,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// AccountBalance returns the current balance for an account.
func (t *tx) AccountBalance(account string) (int64, error) {
	var balance sql.NullInt64
	err := t.tx.QueryRow(
		`SELECT balance FROM credit_ledger WHERE account = ? ORDER BY id DESC LIMIT 1`,
		account,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Int64, nil
}

// LedgerEntries returns recent ledger entries for an account.
func (t *tx) LedgerEntries(account string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := t.tx.Query(
		`SELECT id, timestamp, type, entry_type, account, amount, ref, description, balance
		 FROM credit_ledger WHERE account = ? ORDER BY id DESC LIMIT ?`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		var ref, desc sql.NullString
		err := rows.Scan(&e.ID, &ts, &e.Type, &e.EntryType, &e.Account,
			&e.Amount, &ref, &desc, &e.Balance)
		if err != nil {
			return nil, err
		}
		e.Timestamp = fromNano(ts)
		e.Ref = ref.String
		e.Description = desc.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Idempotency Keys ───────────────────────────────────────────────────────

// GetIdempotency returns the stored outcome for key, or nil if unused.
func (t *tx) GetIdempotency(key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	var createdAt int64
	err := t.tx.QueryRow(
		`SELECT key, operation, fingerprint, response, created_at FROM idempotency_keys WHERE key = ?`,
		key,
	).Scan(&rec.Key, &rec.Operation, &rec.Fingerprint, &rec.Response, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = fromNano(createdAt)
	return &rec, nil
}

// PutIdempotency stores the outcome of a keyed call.
func (t *tx) PutIdempotency(rec domain.IdempotencyRecord) error {
	_, err := t.tx.Exec(
		`INSERT INTO idempotency_keys (key, operation, fingerprint, response, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Key, rec.Operation, rec.Fingerprint, rec.Response, unixNano(rec.CreatedAt),
	)
	return err
}
