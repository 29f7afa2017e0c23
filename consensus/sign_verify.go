package consensus

import (
	"btccore.dev/node/crypto"
)

// VerifyFlags gates optional verification behavior. Only the two flags this
// package's signer actually produces are modeled.
type VerifyFlags uint32

const (
	FlagP2SH    VerifyFlags = 1 << 0
	FlagWitness VerifyFlags = 1 << 1
)

// Coin is the minimal view of a previously created output needed to verify
// the input that spends it. It mirrors store.Coin's Output field without
// importing the store package (consensus has no dependency on storage).
type Coin struct {
	Value  int64
	Script []byte
}

// VerifyInput checks that tx's input at index correctly spends coin,
// dispatching on the classified form of coin.Script. Only the five standard
// forms named in this package's scope are accepted; anything else fails
// closed.
func VerifyInput(p crypto.Provider, tx *Tx, index int, coin Coin, flags VerifyFlags, cache *SighashCache) error {
	in := tx.Inputs[index]

	if pubkey, ok := IsP2PK(coin.Script); ok {
		return verifyP2PK(p, tx, index, pubkey, in.Script)
	}
	if pkHash, ok := IsP2PKH(coin.Script); ok {
		return verifyP2PKH(p, tx, index, pkHash, in.Script)
	}
	if pkHash, ok := IsP2WPKH(coin.Script); ok {
		if flags&FlagWitness == 0 {
			return txerr(ErrScriptInvalid, 0, "witness program without witness flag")
		}
		return verifyP2WPKH(p, tx, index, pkHash, coin.Value, in.Witness, cache)
	}
	if scriptHash, ok := IsP2SH(coin.Script); ok {
		if flags&FlagP2SH == 0 {
			return txerr(ErrScriptInvalid, 0, "p2sh without p2sh flag")
		}
		return verifyP2SHP2WPKH(p, tx, index, scriptHash, coin.Value, in.Script, in.Witness, cache)
	}

	return txerr(ErrScriptInvalid, 0, "unsupported spend form")
}

func verifyP2PK(p crypto.Provider, tx *Tx, index int, pubkey []byte, inputScript []byte) error {
	sig, hashType, ok := parseSingleSig(inputScript)
	if !ok {
		return txerr(ErrScriptInvalid, 0, "p2pk: malformed input script")
	}
	digest := SighashV0(tx, index, pubkeyToP2PKScript(pubkey), hashType)
	if !p.Verify(pubkey, sig, digest) {
		return txerr(ErrSigInvalid, 0, "p2pk: signature invalid")
	}
	return nil
}

func verifyP2PKH(p crypto.Provider, tx *Tx, index int, pkHash [20]byte, inputScript []byte) error {
	sig, hashType, pubkey, ok := parseSigAndPubkey(inputScript)
	if !ok {
		return txerr(ErrScriptInvalid, 0, "p2pkh: malformed input script")
	}
	if hash160(pubkey) != pkHash {
		return txerr(ErrScriptInvalid, 0, "p2pkh: pubkey hash mismatch")
	}
	digest := SighashV0(tx, index, P2PKHScript(pkHash), hashType)
	if !p.Verify(pubkey, sig, digest) {
		return txerr(ErrSigInvalid, 0, "p2pkh: signature invalid")
	}
	return nil
}

func verifyP2WPKH(p crypto.Provider, tx *Tx, index int, pkHash [20]byte, value int64, witness [][]byte, cache *SighashCache) error {
	sig, hashType, pubkey, ok := parseWitnessSigAndPubkey(witness)
	if !ok {
		return txerr(ErrScriptInvalid, 0, "p2wpkh: malformed witness")
	}
	if hash160(pubkey) != pkHash {
		return txerr(ErrScriptInvalid, 0, "p2wpkh: pubkey hash mismatch")
	}
	redeem := P2PKHScript(pkHash)
	digest := SighashV1(tx, index, redeem, value, hashType, cache)
	if !p.Verify(pubkey, sig, digest) {
		return txerr(ErrSigInvalid, 0, "p2wpkh: signature invalid")
	}
	return nil
}

func verifyP2SHP2WPKH(p crypto.Provider, tx *Tx, index int, scriptHash [20]byte, value int64, inputScript []byte, witness [][]byte, cache *SighashCache) error {
	program, ok := extractSingleProgram(inputScript)
	if !ok {
		return txerr(ErrScriptInvalid, 0, "p2sh-p2wpkh: malformed redeem push")
	}
	if hash160(program) != scriptHash {
		return txerr(ErrScriptInvalid, 0, "p2sh-p2wpkh: redeem script hash mismatch")
	}
	pkHash, ok := IsP2WPKH(program)
	if !ok {
		return txerr(ErrScriptInvalid, 0, "p2sh-p2wpkh: redeem is not a p2wpkh program")
	}
	return verifyP2WPKH(p, tx, index, pkHash, value, witness, cache)
}

// SignP2PK signs a fresh p2pk input and writes sig‖hashtype as the single
// input-script push.
func SignP2PK(p crypto.Provider, tx *Tx, index int, privkey []byte, pubkey []byte, hashType uint32) error {
	digest := SighashV0(tx, index, pubkeyToP2PKScript(pubkey), hashType)
	sig, err := p.Sign(privkey, digest)
	if err != nil {
		return err
	}
	tx.Inputs[index].Script = pushScript(append(append([]byte(nil), sig...), byte(hashType)))
	return nil
}

// SignP2PKH signs a fresh p2pkh input, writing (sig‖hashtype, pubkey) as the
// input script.
func SignP2PKH(p crypto.Provider, tx *Tx, index int, privkey []byte, pubkey []byte, hashType uint32) error {
	pkHash := hash160(pubkey)
	digest := SighashV0(tx, index, P2PKHScript(pkHash), hashType)
	sig, err := p.Sign(privkey, digest)
	if err != nil {
		return err
	}
	sigWithType := append(append([]byte(nil), sig...), byte(hashType))
	tx.Inputs[index].Script = pushScript(sigWithType, pubkey)
	return nil
}

// SignP2WPKH signs a fresh p2wpkh input, writing (sig‖hashtype, pubkey) to
// the witness stack and leaving the input script empty.
func SignP2WPKH(p crypto.Provider, tx *Tx, index int, privkey []byte, pubkey []byte, value int64, hashType uint32, cache *SighashCache) error {
	pkHash := hash160(pubkey)
	redeem := P2PKHScript(pkHash)
	digest := SighashV1(tx, index, redeem, value, hashType, cache)
	sig, err := p.Sign(privkey, digest)
	if err != nil {
		return err
	}
	sigWithType := append(append([]byte(nil), sig...), byte(hashType))
	tx.Inputs[index].Script = nil
	tx.Inputs[index].Witness = [][]byte{sigWithType, pubkey}
	return nil
}

// SignP2SHP2WPKH signs a p2sh-wrapped p2wpkh input: the input script pushes
// the witness program, the witness carries (sig‖hashtype, pubkey).
func SignP2SHP2WPKH(p crypto.Provider, tx *Tx, index int, privkey []byte, pubkey []byte, value int64, hashType uint32, cache *SighashCache) error {
	pkHash := hash160(pubkey)
	program := P2WPKHScript(pkHash)
	if err := SignP2WPKH(p, tx, index, privkey, pubkey, value, hashType, cache); err != nil {
		return err
	}
	tx.Inputs[index].Script = pushScript(program)
	return nil
}

func pubkeyToP2PKScript(pubkey []byte) []byte {
	out := pushBytes(pubkey)
	return append(out, opCheckSig)
}

func parseSingleSig(script []byte) (sig []byte, hashType uint32, ok bool) {
	n, header := pushDataLen(script, 0)
	if header == 0 || header+n != len(script) || n < 1 {
		return nil, 0, false
	}
	full := script[header : header+n]
	return full[:len(full)-1], uint32(full[len(full)-1]), true
}

func parseSigAndPubkey(script []byte) (sig []byte, hashType uint32, pubkey []byte, ok bool) {
	n1, h1 := pushDataLen(script, 0)
	if h1 == 0 || n1 < 1 {
		return nil, 0, nil, false
	}
	sigWithType := script[h1 : h1+n1]
	off := h1 + n1
	n2, h2 := pushDataLen(script, off)
	if h2 == 0 || off+h2+n2 != len(script) {
		return nil, 0, nil, false
	}
	pubkey = script[off+h2 : off+h2+n2]
	return sigWithType[:len(sigWithType)-1], uint32(sigWithType[len(sigWithType)-1]), pubkey, true
}

func parseWitnessSigAndPubkey(witness [][]byte) (sig []byte, hashType uint32, pubkey []byte, ok bool) {
	if len(witness) != 2 || len(witness[0]) < 1 {
		return nil, 0, nil, false
	}
	sigWithType := witness[0]
	return sigWithType[:len(sigWithType)-1], uint32(sigWithType[len(sigWithType)-1]), witness[1], true
}

func extractSingleProgram(script []byte) ([]byte, bool) {
	n, header := pushDataLen(script, 0)
	if header == 0 || header+n != len(script) {
		return nil, false
	}
	return script[header : header+n], true
}
