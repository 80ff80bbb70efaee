package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/app/governance"
	"github.com/qor-network/qor/internal/app/market"
	"github.com/qor-network/qor/internal/app/registry"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/sqlite"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCore(db, domain.DefaultPolicy(), zerolog.Nop())
}

func TestCore_EndToEnd(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	robot, err := c.Registry.Register(ctx, "", registry.Registration{Name: "rover", Owner: "op", Stake: 1_000_000})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	task, err := c.Market.CreateTask(ctx, "", market.NewTask{
		RobotID: robot.ID, Title: "deliver", Deadline: time.Now().Add(time.Hour), RequiredScore: 80,
	})
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	if _, err := c.Market.Buy(ctx, "", task.ID, "A", domain.SideYes, 10); err != nil {
		t.Fatalf("Buy(A) error: %v", err)
	}
	if _, err := c.Market.Buy(ctx, "", task.ID, "B", domain.SideNo, 5); err != nil {
		t.Fatalf("Buy(B) error: %v", err)
	}
	if _, err := c.Market.SetSolution(ctx, "", "optimizer", task.ID, "ipfs://plan", 85); err != nil {
		t.Fatalf("SetSolution() error: %v", err)
	}
	v, err := c.Oracle.Verify(ctx, "", "oracle", task.ID, "ipfs://evidence")
	if err != nil || !v.Success {
		t.Fatalf("Verify() = %+v, %v", v, err)
	}
	red, err := c.Market.Redeem(ctx, "", task.ID, "A")
	if err != nil || red.Payout != 15 {
		t.Fatalf("Redeem(A) = %+v, %v; want payout 15", red, err)
	}

	bal, entries, err := c.Account(ctx, domain.UserAccount("A"), 10)
	if err != nil {
		t.Fatalf("Account() error: %v", err)
	}
	if bal != 5 || len(entries) != 2 {
		t.Errorf("A balance=%d entries=%d, want 5 and 2", bal, len(entries))
	}
}

func TestCore_GovernanceChangesMinStake(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	robot, _ := c.Registry.Register(ctx, "", registry.Registration{Name: "rover", Owner: "op", Stake: 1_000_000})

	p, err := c.Governance.Propose(ctx, "", governance.NewProposal{
		Title: "raise", Action: "registry.min_stake=2000000", Proposer: "alice",
	})
	if err != nil {
		t.Fatalf("Propose() error: %v", err)
	}
	if _, err := c.Governance.Vote(ctx, "", p.ID, "v", true, 5); err != nil {
		t.Fatalf("Vote() error: %v", err)
	}
	if _, err := c.Governance.Execute(ctx, "", p.ID); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if got := c.Registry.MinStake(); got != 2_000_000 {
		t.Errorf("min stake = %d, want 2000000", got)
	}
	r, _ := c.Registry.Get(ctx, robot.ID)
	if r.Active {
		t.Error("robot below the new minimum should be inactive")
	}
}
