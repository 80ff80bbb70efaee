package domain

import (
	"context"
	"time"
)

// ─── Storage Port ───────────────────────────────────────────────────────────
// Infrastructure implements Store; the ledgers depend only on these interfaces.
// Every mutating ledger operation runs inside one Update call, so a failed
// operation leaves nothing behind.

// Store opens transactions over the durable ledger state.
type Store interface {
	// Update runs fn in a read-write transaction, committing iff fn returns nil.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn in a transaction that is always rolled back.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the keyed load/save surface available inside a transaction.
// Getters return the matching *NotFound sentinel when the id is unknown.
type Tx interface {
	RobotRepo
	TaskRepo
	ProposalRepo
	JournalRepo
	IdempotencyRepo
}

// RobotRepo persists robots.
type RobotRepo interface {
	GetRobot(id string) (*Robot, error)
	ListRobots() ([]Robot, error)
	RobotsByOwnerName(owner, name string) ([]Robot, error)
	RobotExists(id string) (bool, error)
	PutRobot(r *Robot) error
	DeleteRobot(id string) error
}

// TaskRepo persists tasks and their positions.
type TaskRepo interface {
	GetTask(id string) (*Task, error)
	ListTasks(filter TaskFilter) ([]Task, error)
	CountTasks(filter TaskFilter) (int, error)
	PutTask(t *Task) error
	DeleteTask(id string) error

	InsertPosition(p *Position) error
	ListPositions(taskID string) ([]Position, error)
	CountPositions(taskID string) (int, error)
	MarkRedeemed(ids []string) error
}

// ProposalRepo persists proposals and votes. GetProposal fills Voters.
type ProposalRepo interface {
	GetProposal(id string) (*Proposal, error)
	ListProposals(status ProposalStatus) ([]Proposal, error)
	PutProposal(p *Proposal) error
	DeleteProposal(id string) error
	InsertVote(v *Vote) error
	CountVotes() (int, error)
}

// JournalRepo persists double-entry ledger legs.
type JournalRepo interface {
	InsertLedgerEntry(e LedgerEntry) (int64, error)
	AccountBalance(account string) (int64, error)
	LedgerEntries(account string, limit int) ([]LedgerEntry, error)
}

// IdempotencyRepo persists the outcome of keyed mutating calls.
type IdempotencyRepo interface {
	// GetIdempotency returns nil, nil when key was never used.
	GetIdempotency(key string) (*IdempotencyRecord, error)
	PutIdempotency(rec IdempotencyRecord) error
}

// IdempotencyRecord is the stored outcome of a keyed call. Fingerprint is a
// digest of the operation's inputs; Response is the JSON snapshot returned.
type IdempotencyRecord struct {
	Key         string
	Operation   string
	Fingerprint string
	Response    []byte
	CreatedAt   time.Time
}
