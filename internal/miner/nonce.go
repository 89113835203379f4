package miner

import "github.com/bil-network/bil-node/internal/util"

// XorshiftNonce derives a candidate nonce from three 128-bit streams seeded
// with (time, iteration, miner id). Deterministic: equal inputs always yield
// the same nonce, so workers de-correlate purely through seed and miner id.
func XorshiftNonce(seed1, seed2, seed3 util.Uint128) util.Uint128 {
	seed1 = seed1.Xor(seed1.Lsh(13))
	seed1 = seed1.Xor(seed1.Rsh(17))
	seed1 = seed1.Xor(seed1.Lsh(5))

	seed2 = seed2.Xor(seed2.Lsh(7))
	seed2 = seed2.Xor(seed2.Rsh(11))
	seed2 = seed2.Xor(seed2.Lsh(3))

	seed3 = seed3.Xor(seed3.Lsh(9))
	seed3 = seed3.Xor(seed3.Rsh(13))
	seed3 = seed3.Xor(seed3.Lsh(7))

	mix1 := seed1.RotateLeft(32)
	mix2 := seed2.RotateRight(29)
	mix3 := seed3.RotateLeft(37)

	return mix1.Add(mix2).Add(mix3)
}
