package credit

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Journal Tests ──────────────────────────────────────────────────────────

func TestJournal_InitialBalance(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()

	err := db.View(context.Background(), func(tx domain.Tx) error {
		bal, err := j.Balance(tx, domain.UserAccount("alice"))
		if err != nil {
			return err
		}
		if bal != 0 {
			t.Errorf("initial balance = %d, want 0", bal)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() error: %v", err)
	}
}

func TestJournal_Transfer(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()
	ctx := context.Background()

	err := db.Update(ctx, func(tx domain.Tx) error {
		if err := j.Transfer(tx, domain.TxTrade, domain.UserAccount("alice"), domain.EscrowAccount("t1"), 10, "t1", "buy YES"); err != nil {
			return err
		}
		return j.Transfer(tx, domain.TxTrade, domain.UserAccount("bob"), domain.EscrowAccount("t1"), 5, "t1", "buy NO")
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	db.View(ctx, func(tx domain.Tx) error {
		escrow, _ := j.Balance(tx, domain.EscrowAccount("t1"))
		if escrow != 15 {
			t.Errorf("escrow = %d, want 15", escrow)
		}
		alice, _ := j.Balance(tx, domain.UserAccount("alice"))
		if alice != -10 {
			t.Errorf("alice = %d, want -10", alice)
		}
		return nil
	})
}

func TestJournal_TransferInvalidAmount(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()

	for _, amount := range []int64{0, -5} {
		err := db.Update(context.Background(), func(tx domain.Tx) error {
			return j.Transfer(tx, domain.TxStake, "user:a", "stake:r", amount, "", "")
		})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Transfer(%d) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestJournal_TransferRejectsBalanceWrap(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()
	ctx := context.Background()

	if err := db.Update(ctx, func(tx domain.Tx) error {
		return j.Transfer(tx, domain.TxStake, "user:a", "stake:r", math.MaxInt64, "r", "")
	}); err != nil {
		t.Fatalf("first Transfer() error: %v", err)
	}

	tests := []struct {
		name     string
		from, to string
	}{
		{"debit underflows", "user:a", "stake:other"},
		{"credit overflows", "user:b", "stake:r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Update(ctx, func(tx domain.Tx) error {
				return j.Transfer(tx, domain.TxStake, tt.from, tt.to, 2, "", "")
			})
			if !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("Transfer(%s -> %s) error = %v, want ErrInvalidAmount", tt.from, tt.to, err)
			}
		})
	}

	db.View(ctx, func(tx domain.Tx) error {
		a, _ := j.Balance(tx, "user:a")
		r, _ := j.Balance(tx, "stake:r")
		if a != -math.MaxInt64 || r != math.MaxInt64 {
			t.Errorf("balances = %d/%d, want unchanged after rejected transfers", a, r)
		}
		return nil
	})
}

func TestJournal_TransferSameAccount(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()

	err := db.Update(context.Background(), func(tx domain.Tx) error {
		return j.Transfer(tx, domain.TxStake, "user:a", "user:a", 5, "", "")
	})
	if err == nil {
		t.Error("self-transfer should fail")
	}
}

func TestJournal_RollbackLeavesNothing(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.Update(ctx, func(tx domain.Tx) error {
		if err := j.Transfer(tx, domain.TxStake, "user:a", "stake:r", 5, "r", ""); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	db.View(ctx, func(tx domain.Tx) error {
		entries, _ := j.History(tx, "stake:r", 10)
		if len(entries) != 0 {
			t.Errorf("entries after rollback = %d, want 0", len(entries))
		}
		return nil
	})
}

// ─── Double-Entry Invariant ─────────────────────────────────────────────────

func TestJournal_DoubleEntryInvariant(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()
	ctx := context.Background()

	moves := []struct {
		typ      domain.TxType
		from, to string
		amount   int64
	}{
		{domain.TxStake, "user:a", "stake:r1", 100},
		{domain.TxTrade, "user:b", "escrow:t1", 30},
		{domain.TxTrade, "user:c", "escrow:t1", 20},
		{domain.TxPayout, "escrow:t1", "user:b", 50},
	}
	db.Update(ctx, func(tx domain.Tx) error {
		for _, m := range moves {
			if err := j.Transfer(tx, m.typ, m.from, m.to, m.amount, "", ""); err != nil {
				t.Fatalf("Transfer() error: %v", err)
			}
		}
		return nil
	})

	accounts := []string{"user:a", "user:b", "user:c", "stake:r1", "escrow:t1"}
	db.View(ctx, func(tx domain.Tx) error {
		var debits, credits, sum int64
		for _, acct := range accounts {
			entries, _ := j.History(tx, acct, 100)
			for _, e := range entries {
				switch e.EntryType {
				case domain.EntryDebit:
					debits += e.Amount
				case domain.EntryCredit:
					credits += e.Amount
				}
			}
			bal, _ := j.Balance(tx, acct)
			sum += bal
		}
		if debits != credits {
			t.Errorf("SUM(debits)=%d != SUM(credits)=%d", debits, credits)
		}
		if sum != 0 {
			t.Errorf("sum of balances = %d, want 0", sum)
		}
		escrow, _ := j.Balance(tx, "escrow:t1")
		if escrow != 0 {
			t.Errorf("escrow after payout = %d, want 0", escrow)
		}
		return nil
	})
}

func TestJournal_HistoryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	j := NewJournal()
	ctx := context.Background()

	db.Update(ctx, func(tx domain.Tx) error {
		j.Transfer(tx, domain.TxTrade, "user:a", "escrow:t1", 1, "t1", "first")
		j.Transfer(tx, domain.TxTrade, "user:a", "escrow:t1", 2, "t1", "second")
		return nil
	})

	db.View(ctx, func(tx domain.Tx) error {
		entries, err := j.History(tx, "user:a", 0)
		if err != nil {
			t.Fatalf("History() error: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
		if entries[0].Description != "second" || entries[0].Balance != -3 {
			t.Errorf("newest entry = %+v", entries[0])
		}
		return nil
	})
}
