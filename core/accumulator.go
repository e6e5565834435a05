package core

import "math/big"

// big128 is the validator's signed wide accumulator (spec calls for "a
// wider-than-u64" signed type so that transient negative sums during
// accumulation — order over the balance proof's map is unspecified — never
// produce a false underflow). big.Int gives unbounded width for free and
// keeps the arithmetic itself trivially correct; only the final value is
// ever range-checked against uint64.
type big128 struct {
	v big.Int
}

func (b *big128) addU64(n uint64) {
	b.v.Add(&b.v, new(big.Int).SetUint64(n))
}

func (b *big128) subU64(n uint64) {
	b.v.Sub(&b.v, new(big.Int).SetUint64(n))
}

func (b *big128) clone() *big128 {
	out := &big128{}
	out.v.Set(&b.v)
	return out
}

// toUint64 returns (value, false) if the accumulator is within [0, 2^64),
// or (0, true) if it is negative.
func (b *big128) toUint64() (uint64, bool) {
	if b.v.Sign() < 0 {
		return 0, true
	}
	return b.v.Uint64(), false
}
