package txn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/keylock"
	"github.com/qor-network/qor/internal/infra/sqlite"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRunner(db, keylock.New())
}

type result struct {
	N int `json:"n"`
}

// ─── Idempotency ────────────────────────────────────────────────────────────

func TestDo_ReplaysStoredSnapshot(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()
	calls := 0
	op := Op{Name: "count", Key: "k1", Payload: map[string]int{"x": 1}}

	fn := func(tx domain.Tx) (*result, error) {
		calls++
		return &result{N: calls}, nil
	}

	first, err := Do(ctx, r, op, fn)
	if err != nil {
		t.Fatalf("first Do() error: %v", err)
	}
	second, err := Do(ctx, r, op, fn)
	if err != nil {
		t.Fatalf("second Do() error: %v", err)
	}

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if first.N != 1 || second.N != 1 {
		t.Errorf("results = %d, %d; want 1, 1", first.N, second.N)
	}
}

func TestDo_KeyReuseMismatch(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()
	fn := func(tx domain.Tx) (*result, error) { return &result{N: 1}, nil }

	if _, err := Do(ctx, r, Op{Name: "a", Key: "k", Payload: 1}, fn); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	tests := []struct {
		name string
		op   Op
	}{
		{"different payload", Op{Name: "a", Key: "k", Payload: 2}},
		{"different operation", Op{Name: "b", Key: "k", Payload: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Do(ctx, r, tt.op, fn)
			if !errors.Is(err, domain.ErrIdempotencyMismatch) {
				t.Errorf("error = %v, want ErrIdempotencyMismatch", err)
			}
		})
	}
}

func TestDo_FailureDoesNotConsumeKey(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()
	op := Op{Name: "flaky", Key: "k", Payload: "p"}

	_, err := Do(ctx, r, op, func(tx domain.Tx) (*result, error) {
		return nil, domain.ErrTaskNotOpen
	})
	if !errors.Is(err, domain.ErrTaskNotOpen) {
		t.Fatalf("error = %v, want ErrTaskNotOpen", err)
	}

	got, err := Do(ctx, r, op, func(tx domain.Tx) (*result, error) {
		return &result{N: 7}, nil
	})
	if err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if got.N != 7 {
		t.Errorf("retry result = %d, want 7", got.N)
	}
}

func TestDo_NoKeyAlwaysApplies(t *testing.T) {
	r := newTestRunner(t)
	calls := 0
	for i := 0; i < 3; i++ {
		Do(context.Background(), r, Op{Name: "plain"}, func(tx domain.Tx) (int, error) {
			calls++
			return calls, nil
		})
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_FailureRollsBack(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	_, err := Do(ctx, r, Op{Name: "write"}, func(tx domain.Tx) (struct{}, error) {
		if _, err := tx.InsertLedgerEntry(domain.LedgerEntry{
			Timestamp: time.Now(), Type: domain.TxStake, EntryType: domain.EntryCredit,
			Account: "stake:r", Amount: 5, Balance: 5,
		}); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, domain.ErrInsufficientStake
	})
	if !errors.Is(err, domain.ErrInsufficientStake) {
		t.Fatalf("error = %v", err)
	}

	r.View(ctx, func(tx domain.Tx) error {
		bal, _ := tx.AccountBalance("stake:r")
		if bal != 0 {
			t.Errorf("balance after failed op = %d, want 0", bal)
		}
		return nil
	})
}

// ─── Serialization ──────────────────────────────────────────────────────────

func TestDo_SameRootSerialized(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Do(ctx, r, Op{Name: "serial", Locks: []string{TaskKey("t1")}}, func(tx domain.Tx) (int, error) {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return 0, nil
			})
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent = %d, want 1", maxSeen)
	}
}

func TestLockKeys(t *testing.T) {
	if RobotKey("a") == TaskKey("a") || TaskKey("a") == ProposalKey("a") {
		t.Error("lock keys for different roots must not collide")
	}
}
