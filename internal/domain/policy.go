package domain

// VoteWeighting selects where a vote's weight comes from.
type VoteWeighting string

const (
	WeightDeclared VoteWeighting = "declared" // caller-supplied weight
	WeightFlat     VoteWeighting = "flat"     // one unit per voter
)

// Policy holds the network's tunable constants.
type Policy struct {
	MinStake          int64         // minor units
	Quorum            int64         // combined vote weight
	ReputationSuccess int64         // applied on a successful resolution
	ReputationFailure int64         // applied on a failed resolution (negative)
	VoteWeighting     VoteWeighting
	OracleCallers     []string // empty allows any caller
	OptimizerCallers  []string // empty allows any caller
}

// DefaultPolicy returns the observed network defaults.
// MinStake is 0.01 at 8 decimals.
func DefaultPolicy() Policy {
	return Policy{
		MinStake:          1_000_000,
		Quorum:            5,
		ReputationSuccess: 10,
		ReputationFailure: -5,
		VoteWeighting:     WeightDeclared,
	}
}

// Allowed reports whether caller appears in list; an empty list allows everyone.
func Allowed(list []string, caller string) bool {
	if len(list) == 0 {
		return true
	}
	for _, c := range list {
		if c == caller {
			return true
		}
	}
	return false
}
