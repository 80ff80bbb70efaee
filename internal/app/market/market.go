// Package market owns tasks and positions: pari-mutuel YES/NO pools, share
// issuance, resolution and redemption.
//
// Lifecycle: CreateTask → Buy* → SetSolution → Resolve (oracle) → Redeem*.
// One deposited minor unit always buys exactly one share of its side; the
// payout ratio is fixed only at resolution.
package market

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/app/credit"
	"github.com/qor-network/qor/internal/app/txn"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/metrics"
)

// Registry is the slice of the robot registry the market consults. Both
// calls run inside the market's transaction.
type Registry interface {
	ActiveRobot(tx domain.Tx, id string) (*domain.Robot, error)
	AdjustReputation(tx domain.Tx, id string, delta int64) error
}

// Judge decides a task's outcome inside the resolving transaction. It sees
// the task exactly as stored and may refuse with an error.
type Judge func(t *domain.Task) (success bool, err error)

// Ledger is the task market.
type Ledger struct {
	runner   *txn.Runner
	journal  *credit.Journal
	registry Registry
	policy   domain.Policy
	log      zerolog.Logger

	// now is injectable for testing.
	now func() time.Time
}

// New creates a market ledger.
func New(runner *txn.Runner, journal *credit.Journal, registry Registry, policy domain.Policy, log zerolog.Logger) *Ledger {
	return &Ledger{
		runner:   runner,
		journal:  journal,
		registry: registry,
		policy:   policy,
		log:      log.With().Str("component", "market").Logger(),
		now:      time.Now,
	}
}

// NewTask is the input to CreateTask. Waypoints arrive already typed.
type NewTask struct {
	RobotID       string            `json:"robot_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Waypoints     []domain.Waypoint `json:"waypoints"`
	Deadline      time.Time         `json:"deadline"`
	RequiredScore int               `json:"required_score"`
}

// CreateTask opens a market on an active robot's mission.
func (l *Ledger) CreateTask(ctx context.Context, key string, req NewTask) (*domain.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "title is required")
	}
	if req.RequiredScore < 0 || req.RequiredScore > domain.MaxScore {
		return nil, domain.Invalid(domain.ErrInvalidScore, "required score %d", req.RequiredScore)
	}
	for i, wp := range req.Waypoints {
		if err := wp.Validate(); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
	}

	op := txn.Op{
		Name:    "task.create",
		Key:     key,
		Payload: req,
		Locks:   []string{txn.RobotKey(req.RobotID)},
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Task, error) {
		if _, err := l.registry.ActiveRobot(tx, req.RobotID); err != nil {
			return nil, err
		}
		now := l.now()
		if !req.Deadline.After(now) {
			return nil, domain.ErrInvalidDeadline
		}

		t := &domain.Task{
			ID:            uuid.NewString(),
			RobotID:       req.RobotID,
			Title:         req.Title,
			Description:   req.Description,
			Waypoints:     req.Waypoints,
			Deadline:      req.Deadline,
			RequiredScore: req.RequiredScore,
			Status:        domain.TaskOpen,
			CreatedAt:     now,
		}
		if t.Waypoints == nil {
			t.Waypoints = []domain.Waypoint{}
		}
		if err := tx.PutTask(t); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}
		l.log.Info().Str("task", t.ID).Str("robot", t.RobotID).Msg("task created")
		return t, nil
	})
}

// Trade is the outcome of Buy: the new position and the pools after it.
type Trade struct {
	Position domain.Position `json:"position"`
	Task     domain.Task     `json:"task"`
}

// Buy deposits amount on side, issuing amount shares.
func (l *Ledger) Buy(ctx context.Context, key, taskID, user string, side domain.Side, amount int64) (*Trade, error) {
	if user == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "user is required")
	}
	if side != domain.SideYes && side != domain.SideNo {
		return nil, domain.Invalid(domain.ErrInvalidSide, "got %q", side)
	}

	op := txn.Op{
		Name: "task.buy",
		Key:  key,
		Payload: struct {
			Task   string      `json:"task"`
			User   string      `json:"user"`
			Side   domain.Side `json:"side"`
			Amount int64       `json:"amount"`
		}{taskID, user, side, amount},
		Locks: []string{txn.TaskKey(taskID)},
	}
	trade, err := txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*Trade, error) {
		t, err := tx.GetTask(taskID)
		if err != nil {
			return nil, err
		}
		if t.Status != domain.TaskOpen {
			return nil, domain.ErrTaskNotOpen
		}
		now := l.now()
		if !now.Before(t.Deadline) {
			return nil, domain.ErrTaskExpired
		}
		if amount <= 0 {
			return nil, domain.Invalid(domain.ErrInvalidAmount, "amount %d", amount)
		}
		if amount > math.MaxInt64-t.TotalPool() {
			return nil, domain.Invalid(domain.ErrInvalidAmount, "amount %d overflows pool", amount)
		}

		p := domain.Position{
			ID:        uuid.NewString(),
			TaskID:    t.ID,
			User:      user,
			Side:      side,
			Shares:    amount,
			Cost:      amount,
			CreatedAt: now,
		}
		if side == domain.SideYes {
			t.YesPool += amount
		} else {
			t.NoPool += amount
		}

		if err := tx.InsertPosition(&p); err != nil {
			return nil, fmt.Errorf("save position: %w", err)
		}
		if err := tx.PutTask(t); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}
		if err := l.journal.Transfer(tx, domain.TxTrade, domain.UserAccount(user),
			domain.EscrowAccount(t.ID), amount, p.ID, "buy "+string(side)); err != nil {
			return nil, err
		}
		return &Trade{Position: p, Task: *t}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Trades.WithLabelValues(string(side)).Inc()
	metrics.TradeVolume.WithLabelValues(string(side)).Add(float64(amount))
	return trade, nil
}

// SetSolution records the optimizer's hand-off. It may be set once.
func (l *Ledger) SetSolution(ctx context.Context, key, caller, taskID, solutionURI string, score int) (*domain.Task, error) {
	if !domain.Allowed(l.policy.OptimizerCallers, caller) {
		return nil, domain.ErrNotOptimizer
	}
	if strings.TrimSpace(solutionURI) == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "solution uri is required")
	}
	if score < 0 || score > domain.MaxScore {
		return nil, domain.Invalid(domain.ErrInvalidScore, "optimization score %d", score)
	}

	op := txn.Op{
		Name: "task.solution",
		Key:  key,
		Payload: struct {
			Task  string `json:"task"`
			URI   string `json:"uri"`
			Score int    `json:"score"`
		}{taskID, solutionURI, score},
		Locks: []string{txn.TaskKey(taskID)},
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Task, error) {
		t, err := tx.GetTask(taskID)
		if err != nil {
			return nil, err
		}
		if t.Optimized() {
			return nil, domain.ErrAlreadyOptimized
		}
		if t.Status != domain.TaskOpen {
			return nil, domain.ErrTaskNotOpen
		}
		t.SolutionURI = solutionURI
		t.OptimizationScore = &score
		if err := tx.PutTask(t); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}
		return t, nil
	})
}

// Resolve is the single transition that unlocks redemption. judge runs under
// the task lock, so two concurrent resolutions cannot both pass it. The
// assigned robot's lock is held too, since resolution adjusts its reputation.
// Only the oracle calls this.
func (l *Ledger) Resolve(ctx context.Context, key, taskID, evidenceURI string, judge Judge) (*domain.Task, error) {
	locks := []string{txn.TaskKey(taskID)}
	// RobotID is fixed at creation, so reading it before locking is safe.
	if t, err := l.Get(ctx, taskID); err == nil {
		locks = append(locks, txn.RobotKey(t.RobotID))
	}
	op := txn.Op{
		Name:    "task.resolve",
		Key:     key,
		Payload: []string{taskID, evidenceURI},
		Locks:   locks,
	}
	t, err := txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Task, error) {
		t, err := tx.GetTask(taskID)
		if err != nil {
			return nil, err
		}
		success, err := judge(t)
		if err != nil {
			return nil, err
		}
		if t.Status != domain.TaskOpen {
			return nil, domain.ErrTaskNotOpen
		}
		if !t.Optimized() {
			return nil, domain.ErrNoSolution
		}

		t.Status = domain.TaskResolved
		t.Success = &success
		t.EvidenceURI = evidenceURI
		t.ResolvedAt = l.now()
		if err := tx.PutTask(t); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}

		delta := l.policy.ReputationFailure
		if success {
			delta = l.policy.ReputationSuccess
		}
		if err := l.registry.AdjustReputation(tx, t.RobotID, delta); err != nil {
			return nil, fmt.Errorf("adjust reputation: %w", err)
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "failure"
	if *t.Success {
		outcome = "success"
	}
	metrics.TasksResolved.WithLabelValues(outcome).Inc()
	l.log.Info().Str("task", t.ID).Str("outcome", outcome).Msg("task resolved")
	return t, nil
}

// Redemption is the outcome of Redeem.
type Redemption struct {
	TaskID    string      `json:"task_id"`
	User      string      `json:"user"`
	Side      domain.Side `json:"side"`
	Payout    int64       `json:"payout"`
	Positions []string    `json:"positions"`
}

// Redeem pays every unredeemed winning position user holds on the task.
func (l *Ledger) Redeem(ctx context.Context, key, taskID, user string) (*Redemption, error) {
	op := txn.Op{
		Name:    "task.redeem",
		Key:     key,
		Payload: []string{taskID, user},
		Locks:   []string{txn.TaskKey(taskID)},
	}
	red, err := txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*Redemption, error) {
		t, err := tx.GetTask(taskID)
		if err != nil {
			return nil, err
		}
		if t.Status != domain.TaskResolved {
			return nil, domain.ErrTaskNotResolved
		}
		positions, err := tx.ListPositions(taskID)
		if err != nil {
			return nil, err
		}

		side := t.WinningSide()
		winningPool := t.Pool(side)
		total := t.TotalPool()
		red := &Redemption{TaskID: taskID, User: user, Side: side, Positions: []string{}}
		held := false
		for _, p := range positions {
			if p.User != user || p.Side != side {
				continue
			}
			held = true
			if p.Redeemed {
				continue
			}
			red.Payout += Payout(p.Shares, total, winningPool)
			red.Positions = append(red.Positions, p.ID)
		}
		if !held {
			return nil, domain.ErrNoPosition
		}
		if len(red.Positions) == 0 {
			return nil, domain.ErrAlreadyRedeemed
		}

		if err := tx.MarkRedeemed(red.Positions); err != nil {
			return nil, fmt.Errorf("mark redeemed: %w", err)
		}
		if red.Payout > 0 {
			if err := l.journal.Transfer(tx, domain.TxPayout, domain.EscrowAccount(taskID),
				domain.UserAccount(user), red.Payout, taskID, "redeem "+string(side)); err != nil {
				return nil, err
			}
		}
		return red, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Payouts.Add(float64(red.Payout))
	return red, nil
}

// UpdateDeadline moves an open task's deadline.
func (l *Ledger) UpdateDeadline(ctx context.Context, key, taskID, caller string, deadline time.Time) (*domain.Task, error) {
	op := txn.Op{
		Name: "task.deadline",
		Key:  key,
		Payload: struct {
			Task     string    `json:"task"`
			Caller   string    `json:"caller"`
			Deadline time.Time `json:"deadline"`
		}{taskID, caller, deadline},
		Locks: []string{txn.TaskKey(taskID)},
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Task, error) {
		t, err := l.ownedTask(tx, taskID, caller)
		if err != nil {
			return nil, err
		}
		if t.Status != domain.TaskOpen {
			return nil, domain.ErrTaskNotOpen
		}
		if !deadline.After(l.now()) {
			return nil, domain.ErrInvalidDeadline
		}
		t.Deadline = deadline
		if err := tx.PutTask(t); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}
		return t, nil
	})
}

// Delete removes a task nobody has traded on.
func (l *Ledger) Delete(ctx context.Context, key, taskID, caller string) (*domain.Task, error) {
	op := txn.Op{
		Name:    "task.delete",
		Key:     key,
		Payload: []string{taskID, caller},
		Locks:   []string{txn.TaskKey(taskID)},
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Task, error) {
		t, err := l.ownedTask(tx, taskID, caller)
		if err != nil {
			return nil, err
		}
		n, err := tx.CountPositions(taskID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: %d", domain.ErrHasPositions, n)
		}
		if err := tx.DeleteTask(taskID); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// ownedTask loads a task and checks caller owns its assigned robot. A robot
// that no longer exists has no owner, so nobody passes.
func (l *Ledger) ownedTask(tx domain.Tx, taskID, caller string) (*domain.Task, error) {
	t, err := tx.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	r, err := tx.GetRobot(t.RobotID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.ErrNotAssignedRobotOwner
		}
		return nil, err
	}
	if r.Owner != caller {
		return nil, domain.ErrNotAssignedRobotOwner
	}
	return t, nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Get returns a task.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Task, error) {
	var t *domain.Task
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		var err error
		t, err = tx.GetTask(id)
		return err
	})
	return t, err
}

// List returns tasks matching filter, newest first.
func (l *Ledger) List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	var tasks []domain.Task
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		var err error
		tasks, err = tx.ListTasks(filter)
		return err
	})
	return tasks, err
}

// Positions returns every position on a task.
func (l *Ledger) Positions(ctx context.Context, taskID string) ([]domain.Position, error) {
	var positions []domain.Position
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetTask(taskID); err != nil {
			return err
		}
		var err error
		positions, err = tx.ListPositions(taskID)
		return err
	})
	return positions, err
}
