// Package registry owns robot identity, stake and reputation, and decides
// whether a robot is active.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/app/credit"
	"github.com/qor-network/qor/internal/app/txn"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/metrics"
)

// MinStakeAction is the governance action key that changes the minimum stake.
const MinStakeAction = "registry.min_stake"

// maxIDAttempts bounds id re-derivation on collision.
const maxIDAttempts = 8

var robotNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("qor:robot"))

// Ledger is the robot registry.
type Ledger struct {
	runner   *txn.Runner
	journal  *credit.Journal
	minStake atomic.Int64
	log      zerolog.Logger

	// now is injectable for testing.
	now func() time.Time
}

// New creates a registry enforcing minStake (minor units).
func New(runner *txn.Runner, journal *credit.Journal, minStake int64, log zerolog.Logger) *Ledger {
	l := &Ledger{
		runner:  runner,
		journal: journal,
		log:     log.With().Str("component", "registry").Logger(),
		now:     time.Now,
	}
	l.minStake.Store(minStake)
	return l
}

// MinStake returns the current minimum stake.
func (l *Ledger) MinStake() int64 { return l.minStake.Load() }

// SetMinStake changes the minimum stake. Active status follows immediately
// since it is derived on every read.
func (l *Ledger) SetMinStake(v int64) { l.minStake.Store(v) }

// Registration is the input to Register.
type Registration struct {
	Name         string   `json:"name"`
	Owner        string   `json:"owner"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Stake        int64    `json:"stake"`
}

// Register creates an active robot and locks its stake.
func (l *Ledger) Register(ctx context.Context, key string, req Registration) (*domain.Robot, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "name is required")
	}
	if req.Owner == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "owner is required")
	}
	op := txn.Op{
		Name:    "robot.register",
		Key:     key,
		Payload: req,
		Locks:   []string{nameKey(req.Owner, req.Name)},
	}
	robot, err := txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Robot, error) {
		minStake := l.MinStake()
		if req.Stake < minStake {
			return nil, fmt.Errorf("%w: %d < %d", domain.ErrInsufficientStake, req.Stake, minStake)
		}
		same, err := tx.RobotsByOwnerName(req.Owner, req.Name)
		if err != nil {
			return nil, err
		}
		for i := range same {
			if same[i].Stake >= minStake {
				return nil, domain.ErrDuplicateName
			}
		}

		now := l.now()
		id, err := l.newID(tx, req.Owner, req.Name, now)
		if err != nil {
			return nil, err
		}
		r := &domain.Robot{
			ID:           id,
			IDHash:       hashHex(id),
			Owner:        req.Owner,
			Name:         req.Name,
			Description:  req.Description,
			Capabilities: normalizeCapabilities(req.Capabilities),
			Stake:        req.Stake,
			RegisteredAt: now,
			UpdatedAt:    now,
		}
		r.MetadataURI = metadataURI(r)
		if err := tx.PutRobot(r); err != nil {
			return nil, fmt.Errorf("save robot: %w", err)
		}
		if req.Stake > 0 {
			if err := l.journal.Transfer(tx, domain.TxStake, domain.UserAccount(r.Owner),
				domain.StakeAccount(r.ID), r.Stake, r.ID, "register "+r.Name); err != nil {
				return nil, err
			}
		}
		r.Evaluate(minStake)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RobotsRegistered.Inc()
	l.log.Info().Str("robot", robot.ID).Str("owner", robot.Owner).Int64("stake", robot.Stake).Msg("robot registered")
	return robot, nil
}

// RobotUpdate lists mutable robot fields. Name is accepted only to be
// rejected: it is fixed at registration.
type RobotUpdate struct {
	Name          *string   `json:"name,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Capabilities  *[]string `json:"capabilities,omitempty"`
	StakeIncrease int64     `json:"stake_increase,omitempty"`
}

// Update changes a robot's metadata and optionally tops up its stake. A
// top-up that reactivates the robot takes the owner's name lock and fails
// DuplicateName if a sibling with the same name is active.
func (l *Ledger) Update(ctx context.Context, key, id, caller string, upd RobotUpdate) (*domain.Robot, error) {
	locks := []string{txn.RobotKey(id)}
	if upd.StakeIncrease > 0 {
		// Owner and name are immutable, so reading them before locking is safe.
		if r, err := l.Get(ctx, id); err == nil {
			locks = append(locks, nameKey(r.Owner, r.Name))
		}
	}
	op := txn.Op{
		Name:    "robot.update",
		Key:     key,
		Payload: struct {
			ID     string      `json:"id"`
			Caller string      `json:"caller"`
			Update RobotUpdate `json:"update"`
		}{id, caller, upd},
		Locks: locks,
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Robot, error) {
		r, err := tx.GetRobot(id)
		if err != nil {
			return nil, err
		}
		if r.Owner != caller {
			return nil, domain.ErrNotOwner
		}
		if upd.Name != nil {
			return nil, domain.ErrImmutableField
		}
		if upd.StakeIncrease < 0 {
			return nil, domain.Invalid(domain.ErrInvalidAmount, "stake increase %d", upd.StakeIncrease)
		}

		if upd.Description != nil {
			r.Description = *upd.Description
		}
		if upd.Capabilities != nil {
			r.Capabilities = normalizeCapabilities(*upd.Capabilities)
		}
		r.MetadataURI = metadataURI(r)
		if upd.StakeIncrease > 0 {
			if upd.StakeIncrease > math.MaxInt64-r.Stake {
				return nil, domain.Invalid(domain.ErrInvalidAmount, "stake increase %d overflows stake %d", upd.StakeIncrease, r.Stake)
			}
			minStake := l.MinStake()
			wasActive := r.Stake >= minStake
			r.Stake += upd.StakeIncrease
			if !wasActive && r.Stake >= minStake {
				if err := l.checkNameFree(tx, r, minStake); err != nil {
					return nil, err
				}
			}
			if err := l.journal.Transfer(tx, domain.TxStake, domain.UserAccount(r.Owner),
				domain.StakeAccount(r.ID), upd.StakeIncrease, r.ID, "top up "+r.Name); err != nil {
				return nil, err
			}
		}
		r.UpdatedAt = l.now()
		if err := tx.PutRobot(r); err != nil {
			return nil, fmt.Errorf("save robot: %w", err)
		}
		r.Evaluate(l.MinStake())
		return r, nil
	})
}

// Delete removes a robot with no open tasks and releases its stake.
func (l *Ledger) Delete(ctx context.Context, key, id, caller string) (*domain.Robot, error) {
	op := txn.Op{
		Name:    "robot.delete",
		Key:     key,
		Payload: []string{id, caller},
		Locks:   []string{txn.RobotKey(id)},
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Robot, error) {
		r, err := tx.GetRobot(id)
		if err != nil {
			return nil, err
		}
		if r.Owner != caller {
			return nil, domain.ErrNotOwner
		}
		open, err := tx.CountTasks(domain.TaskFilter{RobotID: id, Status: domain.TaskOpen})
		if err != nil {
			return nil, err
		}
		if open > 0 {
			return nil, fmt.Errorf("%w: %d open", domain.ErrHasActiveTasks, open)
		}

		if r.Stake > 0 {
			if err := l.journal.Transfer(tx, domain.TxUnstake, domain.StakeAccount(r.ID),
				domain.UserAccount(r.Owner), r.Stake, r.ID, "delete "+r.Name); err != nil {
				return nil, err
			}
		}
		if err := tx.DeleteRobot(id); err != nil {
			return nil, err
		}
		r.Evaluate(l.MinStake())
		return r, nil
	})
}

// Get returns a robot with Active evaluated against the current minimum.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Robot, error) {
	var r *domain.Robot
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		var err error
		r, err = tx.GetRobot(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.Evaluate(l.MinStake())
	return r, nil
}

// List returns all robots, oldest first.
func (l *Ledger) List(ctx context.Context) ([]domain.Robot, error) {
	var robots []domain.Robot
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		var err error
		robots, err = tx.ListRobots()
		return err
	})
	if err != nil {
		return nil, err
	}
	minStake := l.MinStake()
	for i := range robots {
		robots[i].Evaluate(minStake)
	}
	return robots, nil
}

// ─── Cross-ledger hooks ─────────────────────────────────────────────────────
// These run inside the caller's transaction and lock scope.

// ActiveRobot returns robot id, failing ErrRobotInactive below the minimum stake.
func (l *Ledger) ActiveRobot(tx domain.Tx, id string) (*domain.Robot, error) {
	r, err := tx.GetRobot(id)
	if err != nil {
		return nil, err
	}
	r.Evaluate(l.MinStake())
	if !r.Active {
		return nil, domain.ErrRobotInactive
	}
	return r, nil
}

// AdjustReputation adds delta to a robot's reputation. Unbounded; a robot
// that no longer exists is skipped.
func (l *Ledger) AdjustReputation(tx domain.Tx, id string, delta int64) error {
	r, err := tx.GetRobot(id)
	if errors.Is(err, domain.ErrRobotNotFound) {
		l.log.Warn().Str("robot", id).Msg("reputation adjustment for unknown robot")
		return nil
	}
	if err != nil {
		return err
	}
	r.Reputation += delta
	r.UpdatedAt = l.now()
	if err := tx.PutRobot(r); err != nil {
		return fmt.Errorf("save robot: %w", err)
	}

	direction := "none"
	switch {
	case delta > 0:
		direction = "up"
	case delta < 0:
		direction = "down"
	}
	metrics.ReputationAdjustments.WithLabelValues(direction).Inc()
	return nil
}

// ApplyAction applies an executed governance proposal targeting registry
// parameters. Actions outside the registry namespace are ignored.
func (l *Ledger) ApplyAction(ctx context.Context, p *domain.Proposal) error {
	name, value, ok := strings.Cut(p.Action, "=")
	if !ok || strings.TrimSpace(name) != MinStakeAction {
		return nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || v < 0 {
		return fmt.Errorf("proposal %s: bad %s value %q", p.ID, MinStakeAction, value)
	}
	old := l.MinStake()
	l.SetMinStake(v)
	l.log.Info().Str("proposal", p.ID).Int64("old", old).Int64("new", v).Msg("minimum stake changed")
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// checkNameFree fails DuplicateName when another robot of r's owner with the
// same name is active.
func (l *Ledger) checkNameFree(tx domain.Tx, r *domain.Robot, minStake int64) error {
	same, err := tx.RobotsByOwnerName(r.Owner, r.Name)
	if err != nil {
		return err
	}
	for i := range same {
		if same[i].ID != r.ID && same[i].Stake >= minStake {
			return domain.ErrDuplicateName
		}
	}
	return nil
}

func (l *Ledger) newID(tx domain.Tx, owner, name string, at time.Time) (string, error) {
	seed := owner + "\x00" + name + "\x00" + strconv.FormatInt(at.UnixNano(), 10)
	for nonce := 0; nonce < maxIDAttempts; nonce++ {
		id := uuid.NewSHA1(robotNamespace, []byte(seed+"\x00"+strconv.Itoa(nonce))).String()
		taken, err := tx.RobotExists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("robot id collision for %q after %d attempts", name, maxIDAttempts)
}

func nameKey(owner, name string) string {
	return "robot-name:" + owner + "\x00" + name
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// metadataURI content-addresses the robot's display metadata.
func metadataURI(r *domain.Robot) string {
	body, _ := json.Marshal(struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Capabilities []string `json:"capabilities"`
	}{r.Name, r.Description, r.Capabilities})
	return "ipfs://Qm" + hashHex(string(body))[:44]
}

func normalizeCapabilities(caps []string) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
