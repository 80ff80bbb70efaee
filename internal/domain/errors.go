package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers deciding whether to retry.
type Kind int

const (
	KindInternal      Kind = iota // store or programming failure
	KindValidation                // malformed or out-of-range input
	KindState                     // invalid for the entity's lifecycle state
	KindAuthorization             // caller is not owner/proposer/oracle
	KindConflict                  // duplicate vote, double redeem, key reuse
	KindNotFound                  // unknown id
)

// String returns the taxonomy name used on the wire.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindState:
		return "state_error"
	case KindAuthorization:
		return "authorization_error"
	case KindConflict:
		return "conflict_error"
	case KindNotFound:
		return "not_found_error"
	default:
		return "internal_error"
	}
}

// Error is a typed ledger failure. Sentinels below are compared with errors.Is.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or "INTERNAL".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// Retryable reports whether a corrected retry may succeed. Conflicts are terminal.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindState:
		return true
	default:
		return false
	}
}

// Invalid wraps a validation sentinel with detail.
func Invalid(base *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Validation
	ErrInvalidInput      = newError(KindValidation, "INVALID_INPUT", "invalid input")
	ErrInsufficientStake = newError(KindValidation, "INSUFFICIENT_STAKE", "stake below minimum")
	ErrImmutableField    = newError(KindValidation, "IMMUTABLE_FIELD", "field cannot be changed after registration")
	ErrInvalidDeadline   = newError(KindValidation, "INVALID_DEADLINE", "deadline must be in the future")
	ErrInvalidScore      = newError(KindValidation, "INVALID_SCORE", "score must be within [0,100]")
	ErrInvalidWaypoint   = newError(KindValidation, "INVALID_WAYPOINT", "malformed waypoint")
	ErrInvalidAmount     = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidSide       = newError(KindValidation, "INVALID_SIDE", "side must be YES or NO")
	ErrInvalidWeight     = newError(KindValidation, "INVALID_WEIGHT", "vote weight must be positive")

	// Registry
	ErrRobotNotFound  = newError(KindNotFound, "ROBOT_NOT_FOUND", "robot not found")
	ErrDuplicateName  = newError(KindConflict, "DUPLICATE_NAME", "owner already has an active robot with this name")
	ErrNotOwner       = newError(KindAuthorization, "NOT_OWNER", "caller does not own this robot")
	ErrHasActiveTasks = newError(KindState, "HAS_ACTIVE_TASKS", "robot has open tasks")

	// Market
	ErrTaskNotFound          = newError(KindNotFound, "TASK_NOT_FOUND", "task not found")
	ErrRobotInactive         = newError(KindState, "ROBOT_INACTIVE", "robot is not active")
	ErrTaskNotOpen           = newError(KindState, "TASK_NOT_OPEN", "task is not open")
	ErrTaskExpired           = newError(KindState, "TASK_EXPIRED", "task deadline has passed")
	ErrAlreadyOptimized      = newError(KindState, "ALREADY_OPTIMIZED", "task already has a solution")
	ErrNoSolution            = newError(KindState, "NO_SOLUTION", "task has no solution")
	ErrTaskNotResolved       = newError(KindState, "TASK_NOT_RESOLVED", "task is not resolved")
	ErrNoPosition            = newError(KindNotFound, "NO_POSITION", "no winning position on this task")
	ErrAlreadyRedeemed       = newError(KindConflict, "ALREADY_REDEEMED", "positions already redeemed")
	ErrNotAssignedRobotOwner = newError(KindAuthorization, "NOT_ASSIGNED_ROBOT_OWNER", "caller does not own the assigned robot")
	ErrHasPositions          = newError(KindState, "HAS_POSITIONS", "task has positions")
	ErrNotOptimizer          = newError(KindAuthorization, "NOT_OPTIMIZER", "caller is not a registered optimizer")

	// Oracle
	ErrTaskNotOptimized = newError(KindState, "TASK_NOT_OPTIMIZED", "task has not been optimized")
	ErrAlreadyResolved  = newError(KindState, "ALREADY_RESOLVED", "task already resolved")
	ErrNotOracle        = newError(KindAuthorization, "NOT_ORACLE", "caller is not a registered oracle")

	// Governance
	ErrProposalNotFound  = newError(KindNotFound, "PROPOSAL_NOT_FOUND", "proposal not found")
	ErrProposalNotActive = newError(KindState, "PROPOSAL_NOT_ACTIVE", "proposal is not active")
	ErrDuplicateVote     = newError(KindConflict, "DUPLICATE_VOTE", "voter already voted on this proposal")
	ErrQuorumNotMet      = newError(KindState, "QUORUM_NOT_MET", "quorum not met")
	ErrProposalRejected  = newError(KindState, "PROPOSAL_REJECTED", "proposal does not have a yes majority")
	ErrNotProposer       = newError(KindAuthorization, "NOT_PROPOSER", "caller is not the proposer")
	ErrHasVotes          = newError(KindState, "HAS_VOTES", "proposal already has votes")

	// Idempotency
	ErrIdempotencyMismatch = newError(KindConflict, "IDEMPOTENCY_MISMATCH", "idempotency key reused with a different request")
)
