package consensus

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for hash160, as used by every Bitcoin-compatible client.
)

// sha256d computes double-SHA256, the hash used for txid/wtxid and block
// header hashing throughout the wire and storage formats.
func sha256d(b []byte) [32]byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second
}

// hash160 computes RIPEMD160(SHA256(b)), used to derive p2pkh/p2wpkh/p2sh
// program hashes during script classification and signing.
func hash160(b []byte) [20]byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:]) //nolint:errcheck // ripemd160.Write never errors.
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
