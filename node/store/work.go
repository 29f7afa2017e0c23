package store

import (
	"fmt"
	"math/big"
)

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// WorkFromTarget returns floor(2^256 / target) for PoW chainwork. target is
// interpreted as an unsigned big-endian integer.
func WorkFromTarget(target32 [32]byte) (*big.Int, error) {
	t := new(big.Int).SetBytes(target32[:])
	if t.Sign() <= 0 {
		return nil, fmt.Errorf("work: target must be > 0")
	}
	return new(big.Int).Quo(twoTo256, t), nil
}

// ExpandBits converts a block header's compact "bits" target representation
// into its full 256-bit big-endian form. The top byte of bits is the
// exponent (in bytes) and the low three bytes are the mantissa, following
// the same compact encoding the header's Bits field carries on the wire.
func ExpandBits(bits uint32) [32]byte {
	exponent := int(bits >> 24)
	mantissa := bits & 0x007fffff

	var out [32]byte
	if exponent <= 3 {
		mantissa >>= uint(8 * (3 - exponent))
		out[29] = byte(mantissa >> 16)
		out[30] = byte(mantissa >> 8)
		out[31] = byte(mantissa)
		return out
	}

	pos := 32 - exponent
	if pos < 0 || pos > 29 {
		return out
	}
	out[pos] = byte(mantissa >> 16)
	out[pos+1] = byte(mantissa >> 8)
	out[pos+2] = byte(mantissa)
	return out
}

// WorkFromBits is the header-level convenience wrapping ExpandBits and
// WorkFromTarget together.
func WorkFromBits(bits uint32) (*big.Int, error) {
	return WorkFromTarget(ExpandBits(bits))
}
