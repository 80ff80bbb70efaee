// Package governance owns proposals: weighted voting and quorum-gated
// execution. Executed actions are handed to an Applier; the ledger itself
// only records that execution happened.
package governance

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/app/txn"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/metrics"
)

// Applier carries out an executed proposal's action.
type Applier interface {
	ApplyAction(ctx context.Context, p *domain.Proposal) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, p *domain.Proposal) error

// ApplyAction calls f.
func (f ApplierFunc) ApplyAction(ctx context.Context, p *domain.Proposal) error { return f(ctx, p) }

// Ledger is the governance ledger.
type Ledger struct {
	runner    *txn.Runner
	quorum    int64
	weighting domain.VoteWeighting
	applier   Applier
	log       zerolog.Logger

	// now is injectable for testing.
	now func() time.Time
}

// New creates a governance ledger. applier may be nil.
func New(runner *txn.Runner, policy domain.Policy, applier Applier, log zerolog.Logger) *Ledger {
	return &Ledger{
		runner:    runner,
		quorum:    policy.Quorum,
		weighting: policy.VoteWeighting,
		applier:   applier,
		log:       log.With().Str("component", "governance").Logger(),
		now:       time.Now,
	}
}

// NewProposal is the input to Propose.
type NewProposal struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action,omitempty"`
	Proposer    string `json:"proposer"`
}

// Propose creates an active proposal with no votes.
func (l *Ledger) Propose(ctx context.Context, key string, req NewProposal) (*domain.Proposal, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "title is required")
	}
	if req.Proposer == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "proposer is required")
	}

	op := txn.Op{Name: "proposal.create", Key: key, Payload: req}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Proposal, error) {
		p := &domain.Proposal{
			ID:          uuid.NewString(),
			Title:       req.Title,
			Description: req.Description,
			Action:      req.Action,
			Proposer:    req.Proposer,
			Voters:      []string{},
			Status:      domain.ProposalActive,
			CreatedAt:   l.now(),
		}
		if err := tx.PutProposal(p); err != nil {
			return nil, fmt.Errorf("save proposal: %w", err)
		}
		return p, nil
	})
}

// Vote records voter's choice once. Under flat weighting the declared
// weight is ignored and every vote counts 1.
func (l *Ledger) Vote(ctx context.Context, key, proposalID, voter string, support bool, weight int64) (*domain.Proposal, error) {
	if voter == "" {
		return nil, domain.Invalid(domain.ErrInvalidInput, "voter is required")
	}
	if l.weighting == domain.WeightFlat {
		weight = 1
	}
	if weight <= 0 {
		return nil, domain.Invalid(domain.ErrInvalidWeight, "weight %d", weight)
	}

	op := txn.Op{
		Name: "proposal.vote",
		Key:  key,
		Payload: struct {
			Proposal string `json:"proposal"`
			Voter    string `json:"voter"`
			Support  bool   `json:"support"`
			Weight   int64  `json:"weight"`
		}{proposalID, voter, support, weight},
		Locks: []string{txn.ProposalKey(proposalID)},
	}
	p, err := txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Proposal, error) {
		p, err := tx.GetProposal(proposalID)
		if err != nil {
			return nil, err
		}
		if p.Status != domain.ProposalActive {
			return nil, domain.ErrProposalNotActive
		}
		if p.HasVoted(voter) {
			return nil, domain.ErrDuplicateVote
		}
		if weight > math.MaxInt64-p.TotalVotes() {
			return nil, domain.Invalid(domain.ErrInvalidWeight, "weight %d overflows tally", weight)
		}

		if support {
			p.YesVotes += weight
		} else {
			p.NoVotes += weight
		}
		if err := tx.InsertVote(&domain.Vote{
			ProposalID: p.ID,
			Voter:      voter,
			Support:    support,
			Weight:     weight,
			CastAt:     l.now(),
		}); err != nil {
			return nil, fmt.Errorf("save vote: %w", err)
		}
		if err := tx.PutProposal(p); err != nil {
			return nil, fmt.Errorf("save proposal: %w", err)
		}
		p.Voters = append(p.Voters, voter)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.VotesCast.WithLabelValues(supportLabel(support)).Inc()
	return p, nil
}

// Execute marks a proposal executed once it has quorum and a yes majority,
// then hands its action to the applier. An applier failure is logged; the
// recorded execution stands.
func (l *Ledger) Execute(ctx context.Context, key, proposalID string) (*domain.Proposal, error) {
	op := txn.Op{
		Name:    "proposal.execute",
		Key:     key,
		Payload: proposalID,
		Locks:   []string{txn.ProposalKey(proposalID)},
	}
	executed := false
	p, err := txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Proposal, error) {
		p, err := tx.GetProposal(proposalID)
		if err != nil {
			return nil, err
		}
		if p.Status != domain.ProposalActive {
			return nil, domain.ErrProposalNotActive
		}
		if total := p.TotalVotes(); total < l.quorum {
			return nil, fmt.Errorf("%w: %d of %d", domain.ErrQuorumNotMet, total, l.quorum)
		}
		if p.YesVotes <= p.NoVotes {
			return nil, fmt.Errorf("%w: %d yes, %d no", domain.ErrProposalRejected, p.YesVotes, p.NoVotes)
		}

		p.Status = domain.ProposalExecuted
		p.ExecutedAt = l.now()
		if err := tx.PutProposal(p); err != nil {
			return nil, fmt.Errorf("save proposal: %w", err)
		}
		executed = true
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	// A replayed key returns the earlier snapshot without applying twice.
	if executed {
		metrics.ProposalsExecuted.Inc()
		l.log.Info().Str("proposal", p.ID).Str("action", p.Action).Msg("proposal executed")
		l.apply(ctx, p)
	}
	return p, nil
}

// Withdraw retires an active proposal nobody has voted on.
func (l *Ledger) Withdraw(ctx context.Context, key, proposalID, caller string) (*domain.Proposal, error) {
	op := txn.Op{
		Name:    "proposal.withdraw",
		Key:     key,
		Payload: []string{proposalID, caller},
		Locks:   []string{txn.ProposalKey(proposalID)},
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Proposal, error) {
		p, err := tx.GetProposal(proposalID)
		if err != nil {
			return nil, err
		}
		if p.Proposer != caller {
			return nil, domain.ErrNotProposer
		}
		if p.Status != domain.ProposalActive {
			return nil, domain.ErrProposalNotActive
		}
		if len(p.Voters) > 0 {
			return nil, domain.ErrHasVotes
		}
		p.Status = domain.ProposalWithdrawn
		if err := tx.PutProposal(p); err != nil {
			return nil, fmt.Errorf("save proposal: %w", err)
		}
		return p, nil
	})
}

// Delete removes a proposal nobody has voted on.
func (l *Ledger) Delete(ctx context.Context, key, proposalID, caller string) (*domain.Proposal, error) {
	op := txn.Op{
		Name:    "proposal.delete",
		Key:     key,
		Payload: []string{proposalID, caller},
		Locks:   []string{txn.ProposalKey(proposalID)},
	}
	return txn.Do(ctx, l.runner, op, func(tx domain.Tx) (*domain.Proposal, error) {
		p, err := tx.GetProposal(proposalID)
		if err != nil {
			return nil, err
		}
		if p.Proposer != caller {
			return nil, domain.ErrNotProposer
		}
		if len(p.Voters) > 0 {
			return nil, domain.ErrHasVotes
		}
		if err := tx.DeleteProposal(proposalID); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Get returns a proposal with its voter set.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Proposal, error) {
	var p *domain.Proposal
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		var err error
		p, err = tx.GetProposal(id)
		return err
	})
	return p, err
}

// List returns proposals with status, or all when status is empty.
func (l *Ledger) List(ctx context.Context, status domain.ProposalStatus) ([]domain.Proposal, error) {
	var ps []domain.Proposal
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		var err error
		ps, err = tx.ListProposals(status)
		return err
	})
	return ps, err
}

// Stats summarizes governance activity.
func (l *Ledger) Stats(ctx context.Context) (domain.GovernanceStats, error) {
	var s domain.GovernanceStats
	err := l.runner.View(ctx, func(tx domain.Tx) error {
		ps, err := tx.ListProposals("")
		if err != nil {
			return err
		}
		s.TotalProposals = len(ps)
		for _, p := range ps {
			switch p.Status {
			case domain.ProposalActive:
				s.ActiveProposals++
			case domain.ProposalExecuted:
				s.ExecutedProposals++
			case domain.ProposalWithdrawn:
				s.WithdrawnProposals++
			}
		}
		s.TotalVotesCast, err = tx.CountVotes()
		return err
	})
	return s, err
}

// Replay re-applies every executed proposal in execution order. The daemon
// calls it at startup so applied parameters survive restarts.
func (l *Ledger) Replay(ctx context.Context) error {
	executed, err := l.List(ctx, domain.ProposalExecuted)
	if err != nil {
		return err
	}
	slices.SortFunc(executed, func(a, b domain.Proposal) int {
		return a.ExecutedAt.Compare(b.ExecutedAt)
	})
	for i := range executed {
		l.apply(ctx, &executed[i])
	}
	if len(executed) > 0 {
		l.log.Info().Int("proposals", len(executed)).Msg("replayed executed proposals")
	}
	return nil
}

func (l *Ledger) apply(ctx context.Context, p *domain.Proposal) {
	if l.applier == nil || p.Action == "" {
		return
	}
	if err := l.applier.ApplyAction(ctx, p); err != nil {
		l.log.Error().Err(err).Str("proposal", p.ID).Str("action", p.Action).Msg("apply proposal action")
	}
}

func supportLabel(support bool) string {
	if support {
		return "yes"
	}
	return "no"
}
