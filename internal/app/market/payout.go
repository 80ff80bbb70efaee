package market

import "math/bits"

// Payout returns floor(shares * totalPool / winningPool) without overflow.
//
// Each winning position is floored independently, so the sum over all
// winning positions is at most floor(winningPool * totalPool / winningPool)
// == totalPool: the pool can under-pay by at most one minor unit per
// position but never over-pay.
func Payout(shares, totalPool, winningPool int64) int64 {
	if shares <= 0 || totalPool <= 0 || winningPool <= 0 {
		return 0
	}
	if shares > winningPool {
		shares = winningPool
	}
	// shares <= winningPool and totalPool < 2^63, so hi < winningPool and
	// Div64 cannot overflow.
	hi, lo := bits.Mul64(uint64(shares), uint64(totalPool))
	q, _ := bits.Div64(hi, lo, uint64(winningPool))
	return int64(q)
}
