package sqlite

import (
	"database/sql"
	"errors"

	"github.com/qor-network/qor/internal/domain"
)

// ─── Proposal Repository ────────────────────────────────────────────────────

const proposalColumns = `id, title, description, action, proposer, yes_votes, no_votes,
	status, created_at, executed_at`

// PutProposal inserts or updates a proposal record. Voters are stored via InsertVote.
func (t *tx) PutProposal(p *domain.Proposal) error {
	_, err := t.tx.Exec(
		`INSERT INTO proposals (`+proposalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			yes_votes=excluded.yes_votes,
			no_votes=excluded.no_votes,
			status=excluded.status,
			executed_at=excluded.executed_at`,
		p.ID, p.Title, p.Description, p.Action, p.Proposer, p.YesVotes, p.NoVotes,
		string(p.Status), unixNano(p.CreatedAt), nullableNano(p.ExecutedAt),
	)
	return err
}

// GetProposal retrieves a proposal and its voter set.
func (t *tx) GetProposal(id string) (*domain.Proposal, error) {
	row := t.tx.QueryRow(`SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProposalNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Voters, err = t.voters(id); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProposals returns proposals with status (all when empty), newest first.
func (t *tx) ListProposals(status domain.ProposalStatus) ([]domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	rows, err := t.tx.Query(query+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}

	var proposals []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range proposals {
		if proposals[i].Voters, err = t.voters(proposals[i].ID); err != nil {
			return nil, err
		}
	}
	return proposals, nil
}

// DeleteProposal removes a proposal and its votes.
func (t *tx) DeleteProposal(id string) error {
	if _, err := t.tx.Exec(`DELETE FROM votes WHERE proposal_id = ?`, id); err != nil {
		return err
	}
	res, err := t.tx.Exec(`DELETE FROM proposals WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res, domain.ErrProposalNotFound)
}

// InsertVote records a vote. The (proposal, voter) primary key rejects repeats.
func (t *tx) InsertVote(v *domain.Vote) error {
	_, err := t.tx.Exec(
		`INSERT INTO votes (proposal_id, voter, support, weight, cast_at) VALUES (?, ?, ?, ?, ?)`,
		v.ProposalID, v.Voter, v.Support, v.Weight, unixNano(v.CastAt),
	)
	return err
}

// CountVotes counts every vote cast across all proposals.
func (t *tx) CountVotes() (int, error) {
	var n int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM votes`).Scan(&n)
	return n, err
}

func (t *tx) voters(proposalID string) ([]string, error) {
	rows, err := t.tx.Query(
		`SELECT voter FROM votes WHERE proposal_id = ? ORDER BY cast_at, voter`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	voters := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		voters = append(voters, v)
	}
	return voters, rows.Err()
}

func scanProposal(s scanner) (*domain.Proposal, error) {
	var p domain.Proposal
	var status string
	var createdAt int64
	var executedAt sql.NullInt64

	err := s.Scan(&p.ID, &p.Title, &p.Description, &p.Action, &p.Proposer,
		&p.YesVotes, &p.NoVotes, &status, &createdAt, &executedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.ProposalStatus(status)
	p.CreatedAt = fromNano(createdAt)
	if executedAt.Valid {
		p.ExecutedAt = fromNano(executedAt.Int64)
	}
	return &p, nil
}
