package domain

import "time"

// ProposalStatus represents the lifecycle of a proposal.
type ProposalStatus string

const (
	ProposalActive    ProposalStatus = "ACTIVE"
	ProposalExecuted  ProposalStatus = "EXECUTED"
	ProposalWithdrawn ProposalStatus = "WITHDRAWN"
)

// Proposal is a governance proposal. Action is an opaque descriptor handed to
// an effect applier once the proposal executes.
type Proposal struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Action      string         `json:"action"`
	Proposer    string         `json:"proposer"`
	YesVotes    int64          `json:"yes_votes"`
	NoVotes     int64          `json:"no_votes"`
	Voters      []string       `json:"voters"`
	Status      ProposalStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ExecutedAt  time.Time      `json:"executed_at,omitempty"`
}

// TotalVotes is the combined vote weight.
func (p *Proposal) TotalVotes() int64 { return p.YesVotes + p.NoVotes }

// HasVoted reports whether voter is already recorded.
func (p *Proposal) HasVoted(voter string) bool {
	for _, v := range p.Voters {
		if v == voter {
			return true
		}
	}
	return false
}

// Vote records a single voter's weighted choice.
type Vote struct {
	ProposalID string    `json:"proposal_id"`
	Voter      string    `json:"voter"`
	Support    bool      `json:"support"`
	Weight     int64     `json:"weight"`
	CastAt     time.Time `json:"cast_at"`
}

// GovernanceStats provides an overview of governance activity.
type GovernanceStats struct {
	TotalProposals     int `json:"total_proposals"`
	ActiveProposals    int `json:"active_proposals"`
	ExecutedProposals  int `json:"executed_proposals"`
	WithdrawnProposals int `json:"withdrawn_proposals"`
	TotalVotesCast     int `json:"total_votes_cast"`
}
