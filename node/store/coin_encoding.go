package store

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"btccore.dev/node/consensus"
)

// Coin and outpoint serialization follows Bitcoin Core's UTXO-set wire
// format: a base-128 VARINT (distinct from the tx-wire CompactSize) for
// small integers, and an amount/script compression scheme that shrinks the
// overwhelmingly common output shapes (P2PKH, P2SH, P2PK) to a fixed 21 or
// 33 bytes. No third-party implementation of this exists anywhere in the
// retrieved examples; it is written here from the well-known algorithm.

func encodeOutpointKey(op consensus.Outpoint) []byte {
	out := make([]byte, 36)
	copy(out[:32], op.Hash[:])
	out[32] = byte(op.Index)
	out[33] = byte(op.Index >> 8)
	out[34] = byte(op.Index >> 16)
	out[35] = byte(op.Index >> 24)
	return out
}

func decodeOutpointKey(b []byte) (consensus.Outpoint, error) {
	if len(b) != 36 {
		return consensus.Outpoint{}, fmt.Errorf("outpoint: expected 36 bytes, got %d", len(b))
	}
	var hash [32]byte
	copy(hash[:], b[:32])
	index := uint32(b[32]) | uint32(b[33])<<8 | uint32(b[34])<<16 | uint32(b[35])<<24
	return consensus.Outpoint{Hash: hash, Index: index}, nil
}

// writeVarInt is Bitcoin Core's base-128 VARINT: groups of 7 bits,
// most-significant group first, every group but the last carrying a
// continuation bit, with an implicit "+1" folded into each continued group
// so the encoding has no redundant representations.
func writeVarInt(n uint64) []byte {
	var tmp [10]byte
	length := 0
	for {
		b := byte(n & 0x7f)
		if length != 0 {
			b |= 0x80
		}
		tmp[length] = b
		if n <= 0x7f {
			break
		}
		n = (n >> 7) - 1
		length++
	}
	out := make([]byte, length+1)
	for i := 0; i <= length; i++ {
		out[i] = tmp[length-i]
	}
	return out
}

func readVarInt(b []byte) (uint64, int, error) {
	var n uint64
	for i, c := range b {
		if n > (1<<63)>>7 {
			return 0, 0, fmt.Errorf("varint: overflow")
		}
		n = (n << 7) | uint64(c&0x7f)
		if c&0x80 != 0 {
			n++
			continue
		}
		return n, i + 1, nil
	}
	return 0, 0, fmt.Errorf("varint: truncated")
}

// compressAmount folds a satoshi value, which is overwhelmingly a multiple
// of a power of ten, into a shorter representation by factoring out
// trailing zero decimal digits.
func compressAmount(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	e := 0
	for n%10 == 0 && e < 9 {
		n /= 10
		e++
	}
	if e < 9 {
		d := n % 10
		n /= 10
		return 1 + (n*9+d-1)*10 + uint64(e)
	}
	return 1 + (n-1)*10 + 9
}

func decompressAmount(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	x--
	e := x % 10
	x /= 10
	var n uint64
	if e < 9 {
		d := (x % 9) + 1
		x /= 9
		n = x*10 + d
	} else {
		n = x + 1
	}
	for ; e > 0; e-- {
		n *= 10
	}
	return n
}

const specialScriptCount = 6

// compressScript recognizes P2PKH, P2SH, and P2PK (compressed or
// uncompressed) previous-output scripts and returns (specialTag, 20/32-byte
// payload, true); any other script is not compressible.
func compressScript(script []byte) (byte, []byte, bool) {
	if pkHash, ok := consensus.IsP2PKH(script); ok {
		return 0x00, pkHash[:], true
	}
	if scriptHash, ok := consensus.IsP2SH(script); ok {
		return 0x01, scriptHash[:], true
	}
	if pubkey, ok := consensus.IsP2PK(script); ok {
		switch len(pubkey) {
		case 33:
			if pubkey[0] == 0x02 || pubkey[0] == 0x03 {
				return pubkey[0], pubkey[1:33], true
			}
		case 65:
			if pubkey[0] == 0x04 {
				return 0x04 | (pubkey[64] & 0x01), pubkey[1:33], true
			}
		}
	}
	return 0, nil, false
}

func decompressScript(tag byte, payload []byte) ([]byte, error) {
	switch tag {
	case 0x00:
		var h [20]byte
		copy(h[:], payload)
		return consensus.P2PKHScript(h), nil
	case 0x01:
		var h [20]byte
		copy(h[:], payload)
		return consensus.P2SHScript(h), nil
	case 0x02, 0x03:
		pubkey := append([]byte{tag}, payload...)
		return pubkeyScript(pubkey), nil
	case 0x04, 0x05:
		uncompressed, err := decompressPubkey(tag, payload)
		if err != nil {
			return nil, err
		}
		return pubkeyScript(uncompressed), nil
	default:
		return nil, fmt.Errorf("script compression: unknown tag %#x", tag)
	}
}

func pubkeyScript(pubkey []byte) []byte {
	out := make([]byte, 0, len(pubkey)+2)
	out = append(out, byte(len(pubkey)))
	out = append(out, pubkey...)
	out = append(out, 0xac) // OP_CHECKSIG
	return out
}

// decompressPubkey reverses the 0x04/0x05 compression tags, recovering the
// original 65-byte uncompressed pubkey encoding a P2PK output committed on
// chain. The compressed X coordinate plus the tag's parity bit round-trips
// through secp256k1 point decompression via btcec, matching Bitcoin Core's
// UTXO-compression semantics: a P2PK coin created with an uncompressed
// pubkey must decode back to that same uncompressed scriptPubKey, or a
// signature verified against the script it rebuilds at spend time won't
// match the digest the original signer signed.
func decompressPubkey(tag byte, payload []byte) ([]byte, error) {
	compressed := append([]byte{0x02 | (tag & 0x01)}, payload...)
	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("coin: decompress pubkey: %w", err)
	}
	return pub.SerializeUncompressed(), nil
}

func encodeCompressedOutput(out consensus.TxOutput) []byte {
	dst := writeVarInt(compressAmount(uint64(out.Value)))
	if tag, payload, ok := compressScript(out.Script); ok {
		dst = append(dst, tag)
		dst = append(dst, payload...)
		return dst
	}
	dst = append(dst, writeVarInt(uint64(len(out.Script))+specialScriptCount)...)
	dst = append(dst, out.Script...)
	return dst
}

func decodeCompressedOutput(b []byte) (consensus.TxOutput, int, error) {
	amountCS, n, err := readVarInt(b)
	if err != nil {
		return consensus.TxOutput{}, 0, fmt.Errorf("coin: amount: %w", err)
	}
	off := n
	value := decompressAmount(amountCS)

	sizeCode, n, err := readVarInt(b[off:])
	if err != nil {
		return consensus.TxOutput{}, 0, fmt.Errorf("coin: script size: %w", err)
	}
	off += n

	if sizeCode < specialScriptCount {
		payloadLen := 20
		if sizeCode >= 2 {
			payloadLen = 32
		}
		if off+payloadLen > len(b) {
			return consensus.TxOutput{}, 0, fmt.Errorf("coin: truncated special script")
		}
		script, err := decompressScript(byte(sizeCode), b[off:off+payloadLen])
		if err != nil {
			return consensus.TxOutput{}, 0, err
		}
		off += payloadLen
		return consensus.TxOutput{Value: int64(value), Script: script}, off, nil
	}

	scriptLen := int(sizeCode - specialScriptCount)
	if off+scriptLen > len(b) {
		return consensus.TxOutput{}, 0, fmt.Errorf("coin: truncated script")
	}
	script := append([]byte(nil), b[off:off+scriptLen]...)
	off += scriptLen
	return consensus.TxOutput{Value: int64(value), Script: script}, off, nil
}

// encodeCoin serializes a Coin as VARINT(version) ‖ VARINT(height*2 +
// coinbase-flag) ‖ compressed output. A spent coin is never encoded;
// callers delete its key instead.
func encodeCoin(c Coin) ([]byte, error) {
	if c.Spent {
		return nil, fmt.Errorf("coin: refusing to encode a spent coin")
	}
	dst := writeVarInt(uint64(uint32(c.Version)))
	code := uint64(c.Height) * 2
	if c.Coinbase {
		code++
	}
	dst = append(dst, writeVarInt(code)...)
	dst = append(dst, encodeCompressedOutput(c.Output)...)
	return dst, nil
}

func decodeCoin(b []byte) (Coin, error) {
	version, n, err := readVarInt(b)
	if err != nil {
		return Coin{}, fmt.Errorf("coin: version: %w", err)
	}
	off := n

	code, n, err := readVarInt(b[off:])
	if err != nil {
		return Coin{}, fmt.Errorf("coin: code: %w", err)
	}
	off += n

	out, n, err := decodeCompressedOutput(b[off:])
	if err != nil {
		return Coin{}, err
	}
	off += n
	if off != len(b) {
		return Coin{}, fmt.Errorf("coin: trailing bytes")
	}

	return Coin{
		Version:  int32(uint32(version)),
		Height:   uint32(code / 2),
		Coinbase: code%2 == 1,
		Spent:    false,
		Output:   out,
	}, nil
}

// encodeUndoRecord serializes the ordered stack of coins a block consumed,
// each coin using the same format as a standalone Coin record, prefixed by
// its byte length so decoding can walk the stream without a shared count
// field ambiguity against the compressed output's own variable width.
func encodeUndoRecord(u UndoRecord) ([]byte, error) {
	dst := writeVarInt(uint64(len(u.Spent)))
	for _, c := range u.Spent {
		coinBytes, err := encodeCoin(c)
		if err != nil {
			return nil, err
		}
		dst = append(dst, writeVarInt(uint64(len(coinBytes)))...)
		dst = append(dst, coinBytes...)
	}
	return dst, nil
}

func decodeUndoRecord(b []byte) (UndoRecord, error) {
	count, n, err := readVarInt(b)
	if err != nil {
		return UndoRecord{}, fmt.Errorf("undo: count: %w", err)
	}
	off := n

	spent := make([]Coin, 0, count)
	for i := uint64(0); i < count; i++ {
		coinLen, n, err := readVarInt(b[off:])
		if err != nil {
			return UndoRecord{}, fmt.Errorf("undo: coin length: %w", err)
		}
		off += n
		if off+int(coinLen) > len(b) {
			return UndoRecord{}, fmt.Errorf("undo: truncated coin")
		}
		c, err := decodeCoin(b[off : off+int(coinLen)])
		if err != nil {
			return UndoRecord{}, err
		}
		off += int(coinLen)
		spent = append(spent, c)
	}
	if off != len(b) {
		return UndoRecord{}, fmt.Errorf("undo: trailing bytes")
	}
	return UndoRecord{Spent: spent}, nil
}
