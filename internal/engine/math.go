package engine

import "math/big"

// mulDiv computes floor(a * num / den) without intermediate overflow. All
// proportional splits in the engine go through this single rounding rule;
// remainders are swept to the reserve account, never discarded.
func mulDiv(a, num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	p := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(num))
	p.Quo(p, new(big.Int).SetUint64(den))
	return p.Uint64()
}
