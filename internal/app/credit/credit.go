// Package credit implements the double-entry journal of value movements.
// Every movement creates matched DEBIT/CREDIT entries, so SUM(debits) ==
// SUM(credits) holds across all accounts. User accounts are external
// funding sources and may run negative; stake and escrow accounts never do.
package credit

import (
	"fmt"
	"math"
	"time"

	"github.com/qor-network/qor/internal/domain"
)

// Journal records movements inside the caller's transaction.
type Journal struct {
	// now is injectable for testing.
	now func() time.Time
}

// NewJournal creates a journal.
func NewJournal() *Journal {
	return &Journal{now: time.Now}
}

// Transfer moves amount from one account to another as a DEBIT/CREDIT pair.
func (j *Journal) Transfer(tx domain.JournalRepo, typ domain.TxType, from, to string, amount int64, ref, desc string) error {
	if amount <= 0 {
		return domain.Invalid(domain.ErrInvalidAmount, "transfer amount %d", amount)
	}
	if from == to {
		return fmt.Errorf("transfer %s: source and destination are both %q", typ, from)
	}

	fromBal, err := tx.AccountBalance(from)
	if err != nil {
		return fmt.Errorf("get %s balance: %w", from, err)
	}
	toBal, err := tx.AccountBalance(to)
	if err != nil {
		return fmt.Errorf("get %s balance: %w", to, err)
	}
	if fromBal < math.MinInt64+amount {
		return domain.Invalid(domain.ErrInvalidAmount, "debit of %d underflows %s balance %d", amount, from, fromBal)
	}
	if toBal > math.MaxInt64-amount {
		return domain.Invalid(domain.ErrInvalidAmount, "credit of %d overflows %s balance %d", amount, to, toBal)
	}

	now := j.now()
	if _, err := tx.InsertLedgerEntry(domain.LedgerEntry{
		Timestamp:   now,
		Type:        typ,
		EntryType:   domain.EntryDebit,
		Account:     from,
		Amount:      amount,
		Ref:         ref,
		Description: desc,
		Balance:     fromBal - amount,
	}); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}

	if _, err := tx.InsertLedgerEntry(domain.LedgerEntry{
		Timestamp:   now,
		Type:        typ,
		EntryType:   domain.EntryCredit,
		Account:     to,
		Amount:      amount,
		Ref:         ref,
		Description: desc,
		Balance:     toBal + amount,
	}); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}

// Balance returns the running balance of account.
func (j *Journal) Balance(tx domain.JournalRepo, account string) (int64, error) {
	return tx.AccountBalance(account)
}

// History returns the most recent entries for account, newest first.
func (j *Journal) History(tx domain.JournalRepo, account string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return tx.LedgerEntries(account, limit)
}
