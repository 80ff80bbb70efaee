package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/app/credit"
	"github.com/qor-network/qor/internal/app/market"
	"github.com/qor-network/qor/internal/app/registry"
	"github.com/qor-network/qor/internal/app/txn"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/keylock"
	"github.com/qor-network/qor/internal/infra/sqlite"
)

func setup(t *testing.T, oracles ...string) (*Resolver, *market.Ledger, string) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	policy := domain.DefaultPolicy()
	runner := txn.NewRunner(db, keylock.New())
	journal := credit.NewJournal()
	reg := registry.New(runner, journal, policy.MinStake, zerolog.Nop())
	m := market.New(runner, journal, reg, policy, zerolog.Nop())

	ctx := context.Background()
	robot, err := reg.Register(ctx, "", registry.Registration{Name: "rover", Owner: "op", Stake: policy.MinStake})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	task, err := m.CreateTask(ctx, "", market.NewTask{
		RobotID: robot.ID, Title: "survey", Deadline: time.Now().Add(time.Hour), RequiredScore: 80,
	})
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	return New(m, oracles), m, task.ID
}

func TestVerify(t *testing.T) {
	tests := []struct {
		score       int
		wantSuccess bool
	}{
		{85, true},
		{80, true},
		{79, false},
		{0, false},
	}
	for _, tt := range tests {
		r, m, taskID := setup(t)
		ctx := context.Background()
		if _, err := m.SetSolution(ctx, "", "opt", taskID, "ipfs://plan", tt.score); err != nil {
			t.Fatalf("SetSolution() error: %v", err)
		}

		v, err := r.Verify(ctx, "", "oracle", taskID, "ipfs://evidence")
		if err != nil {
			t.Fatalf("Verify(score=%d) error: %v", tt.score, err)
		}
		if v.Success != tt.wantSuccess {
			t.Errorf("score %d: success = %v, want %v", tt.score, v.Success, tt.wantSuccess)
		}

		task, _ := m.Get(ctx, taskID)
		if task.Status != domain.TaskResolved || task.EvidenceURI != "ipfs://evidence" {
			t.Errorf("task after verify = %+v", task)
		}
	}
}

func TestVerify_TaskNotOptimized(t *testing.T) {
	r, m, taskID := setup(t)
	ctx := context.Background()

	_, err := r.Verify(ctx, "", "oracle", taskID, "ipfs://evidence")
	if !errors.Is(err, domain.ErrTaskNotOptimized) {
		t.Errorf("error = %v, want ErrTaskNotOptimized", err)
	}
	task, _ := m.Get(ctx, taskID)
	if task.Status != domain.TaskOpen {
		t.Errorf("status = %s, want OPEN", task.Status)
	}
}

func TestVerify_SingleShot(t *testing.T) {
	r, m, taskID := setup(t)
	ctx := context.Background()
	m.SetSolution(ctx, "", "opt", taskID, "ipfs://plan", 90)

	if _, err := r.Verify(ctx, "", "oracle", taskID, "ipfs://first"); err != nil {
		t.Fatalf("first Verify() error: %v", err)
	}
	before, _ := m.Get(ctx, taskID)

	_, err := r.Verify(ctx, "", "oracle", taskID, "ipfs://second")
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("second Verify() error = %v, want ErrAlreadyResolved", err)
	}
	after, _ := m.Get(ctx, taskID)
	if after.EvidenceURI != before.EvidenceURI || !after.ResolvedAt.Equal(before.ResolvedAt) {
		t.Errorf("second verify changed state: %+v", after)
	}
}

func TestVerify_ConcurrentResolvesOnce(t *testing.T) {
	r, m, taskID := setup(t)
	ctx := context.Background()
	m.SetSolution(ctx, "", "opt", taskID, "ipfs://plan", 90)

	var ok, already atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Verify(ctx, "", "oracle", taskID, "ipfs://evidence")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrAlreadyResolved):
				already.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || already.Load() != 9 {
		t.Errorf("ok=%d already=%d, want 1 and 9", ok.Load(), already.Load())
	}
}

func TestVerify_NotOracle(t *testing.T) {
	r, m, taskID := setup(t, "oracle-1")
	ctx := context.Background()
	m.SetSolution(ctx, "", "opt", taskID, "ipfs://plan", 90)

	_, err := r.Verify(ctx, "", "mallory", taskID, "ipfs://evidence")
	if !errors.Is(err, domain.ErrNotOracle) {
		t.Fatalf("error = %v, want ErrNotOracle", err)
	}
	if domain.KindOf(err) != domain.KindAuthorization {
		t.Errorf("kind = %v, want authorization", domain.KindOf(err))
	}
	if _, err := r.Verify(ctx, "", "oracle-1", taskID, "ipfs://evidence"); err != nil {
		t.Errorf("allowed oracle error: %v", err)
	}
}

func TestVerify_UnknownTask(t *testing.T) {
	r, _, _ := setup(t)
	_, err := r.Verify(context.Background(), "", "oracle", "missing", "ipfs://evidence")
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("error = %v, want ErrTaskNotFound", err)
	}
}
