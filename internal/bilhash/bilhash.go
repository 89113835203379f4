// Package bilhash provides the 128-bit RapidHash construction used for
// proof-of-work and merkle hashing.
package bilhash

import (
	"encoding/binary"
	"math/bits"

	"github.com/bil-network/bil-node/internal/util"
)

// Secret constants from the canonical rapidhash implementation
const (
	secret0 = 0x2d358dccaa6c78a5
	secret1 = 0x8bb84b93962eacc9
	secret2 = 0x4b33a62ed433d4a3
)

// mum computes the 128-bit product of a and b and returns (lo, hi)
func mum(a, b uint64) (uint64, uint64) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi
}

// mix folds a 128-bit product into 64 bits
func mix(a, b uint64) uint64 {
	lo, hi := mum(a, b)
	return lo ^ hi
}

func read64(p []byte) uint64 {
	return binary.LittleEndian.Uint64(p)
}

func read32(p []byte) uint64 {
	return uint64(binary.LittleEndian.Uint32(p))
}

// readSmall assembles 1..3 trailing bytes the way rapidhash does
func readSmall(p []byte, k int) uint64 {
	return uint64(p[0])<<56 | uint64(p[k>>1])<<32 | uint64(p[k-1])
}

// Hash64 computes seeded rapidhash over data.
// This is a bit-for-bit port of the canonical algorithm; it must never be
// replaced by another hash, a single differing bit is a hard fork.
func Hash64(seed uint64, data []byte) uint64 {
	l := len(data)
	seed ^= mix(seed^secret0, secret1) ^ uint64(l)

	var a, b uint64
	if l <= 16 {
		if l >= 4 {
			a = read32(data)<<32 | read32(data[l-4:])
			delta := int((uint64(l) & 24) >> (uint(l) >> 3))
			b = read32(data[delta:])<<32 | read32(data[l-4-delta:])
		} else if l > 0 {
			a = readSmall(data, l)
			b = 0
		} else {
			a, b = 0, 0
		}
	} else {
		// off tracks the consumed prefix; the tail reads below index back
		// into it deliberately, as the reference implementation does
		i := l
		off := 0
		if i > 48 {
			see1, see2 := seed, seed
			for i >= 96 {
				seed = mix(read64(data[off:])^secret0, read64(data[off+8:])^seed)
				see1 = mix(read64(data[off+16:])^secret1, read64(data[off+24:])^see1)
				see2 = mix(read64(data[off+32:])^secret2, read64(data[off+40:])^see2)
				seed = mix(read64(data[off+48:])^secret0, read64(data[off+56:])^seed)
				see1 = mix(read64(data[off+64:])^secret1, read64(data[off+72:])^see1)
				see2 = mix(read64(data[off+80:])^secret2, read64(data[off+88:])^see2)
				off += 96
				i -= 96
			}
			if i >= 48 {
				seed = mix(read64(data[off:])^secret0, read64(data[off+8:])^seed)
				see1 = mix(read64(data[off+16:])^secret1, read64(data[off+24:])^see1)
				see2 = mix(read64(data[off+32:])^secret2, read64(data[off+40:])^see2)
				off += 48
				i -= 48
			}
			seed ^= see1 ^ see2
		}
		if i > 16 {
			seed = mix(read64(data[off:])^secret2, read64(data[off+8:])^seed^secret1)
			if i > 32 {
				seed = mix(read64(data[off+16:])^secret2, read64(data[off+24:])^seed)
			}
		}
		a = read64(data[off+i-16:])
		b = read64(data[off+i-8:])
	}

	a ^= secret1
	b ^= seed
	a, b = mum(a, b)
	return mix(a^secret0^uint64(l), b^secret1)
}

// Hash128 assembles the consensus 128-bit hash from two 64-bit passes:
// H64 = Hash64(0, data); high = Hash64(seed=H64, LE(H64)); H = high<<64 | H64.
func Hash128(data []byte) util.Uint128 {
	h64 := Hash64(0, data)

	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], h64)
	high := Hash64(h64, le[:])

	return util.U128(high, h64)
}

// MeetsDifficulty reports whether h has at least difficulty leading zero bits
func MeetsDifficulty(h util.Uint128, difficulty uint32) bool {
	return uint32(h.LeadingZeros()) >= difficulty
}
