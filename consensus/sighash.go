package consensus

const (
	SighashAll          uint32 = 0x01
	SighashNone         uint32 = 0x02
	SighashSingle       uint32 = 0x03
	SighashAnyoneCanPay uint32 = 0x80
)

// SighashCache amortizes the three BIP143 sub-hashes across multiple inputs
// of the same transaction. A nil cache is a valid argument everywhere and
// simply disables caching; legacy sighash (v0) never touches it.
type SighashCache struct {
	hasPrevouts bool
	prevouts    [32]byte

	hasSequences bool
	sequences    [32]byte

	hasOutputs bool
	outputs    [32]byte
}

func stripCodeSeparators(script []byte) []byte {
	out := make([]byte, 0, len(script))
	for i := 0; i < len(script); {
		op := script[i]
		if op == opCodeSeparator {
			i++
			continue
		}
		n, skip := pushDataLen(script, i)
		if skip == 0 {
			out = append(out, script[i])
			i++
			continue
		}
		out = append(out, script[i:i+skip+n]...)
		i += skip + n
	}
	return out
}

const opCodeSeparator = 0xab

// pushDataLen returns the number of data bytes following a push opcode at
// script[i] and the number of bytes the opcode+length itself occupies, or
// (0, 0) if script[i] is not a recognized push opcode.
func pushDataLen(script []byte, i int) (dataLen int, headerLen int) {
	op := script[i]
	switch {
	case op >= 0x01 && op <= 0x4b:
		return int(op), 1
	case op == 0x4c: // OP_PUSHDATA1
		if i+1 >= len(script) {
			return 0, 0
		}
		return int(script[i+1]), 2
	case op == 0x4d: // OP_PUSHDATA2
		if i+2 >= len(script) {
			return 0, 0
		}
		return int(script[i+1]) | int(script[i+2])<<8, 3
	case op == 0x4e: // OP_PUSHDATA4
		if i+4 >= len(script) {
			return 0, 0
		}
		return int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24, 5
	default:
		return 0, 0
	}
}

// SighashV0 computes the legacy signature hash for input index.
func SighashV0(tx *Tx, index int, prevScript []byte, hashType uint32) [32]byte {
	if (hashType&0x1f) == SighashSingle && index >= len(tx.Outputs) {
		var h [32]byte
		h[0] = 0x01
		return h
	}

	stripped := stripCodeSeparators(prevScript)

	modInputs := make([]TxInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		script := []byte{}
		if i == index {
			script = stripped
		}
		sequence := in.Sequence
		if i != index && (hashType&0x1f == SighashNone || hashType&0x1f == SighashSingle) {
			sequence = 0
		}
		modInputs[i] = TxInput{PrevOut: in.PrevOut, Script: script, Sequence: sequence}
	}

	if hashType&SighashAnyoneCanPay != 0 {
		modInputs = []TxInput{modInputs[index]}
	}

	modOutputs := make([]TxOutput, len(tx.Outputs))
	copy(modOutputs, tx.Outputs)

	switch hashType & 0x1f {
	case SighashNone:
		modOutputs = nil
	case SighashSingle:
		modOutputs = modOutputs[:index+1]
		for i := 0; i < index; i++ {
			modOutputs[i] = TxOutput{Value: -1, Script: nil}
		}
	}

	modTx := &Tx{Version: tx.Version, Inputs: modInputs, Outputs: modOutputs, Locktime: tx.Locktime}

	preimage := TxNoWitnessBytes(modTx)
	preimage = appendU32le(preimage, hashType)

	return sha256d(preimage)
}

// SighashV1 computes the BIP143 segwit signature hash for input index,
// against prevScript (the script the signature actually covers — the p2wpkh
// synthesized redeem script, or the p2wsh witness script) and the input's
// spent value. cache may be nil.
func SighashV1(tx *Tx, index int, prevScript []byte, value int64, hashType uint32, cache *SighashCache) [32]byte {
	in := tx.Inputs[index]

	hashPrevouts := hashForPrevouts(tx, hashType, cache)
	hashSequences := hashForSequences(tx, hashType, cache)
	hashOutputs := hashForOutputs(tx, index, hashType, cache)

	preimage := make([]byte, 0, 4+32+32+36+1+len(prevScript)+8+4+32+4+4)
	preimage = appendI32le(preimage, tx.Version)
	preimage = append(preimage, hashPrevouts[:]...)
	preimage = append(preimage, hashSequences[:]...)
	preimage = outpointBytes(preimage, in.PrevOut)
	preimage = scriptBytes(preimage, prevScript)
	preimage = appendI64le(preimage, value)
	preimage = appendU32le(preimage, in.Sequence)
	preimage = append(preimage, hashOutputs[:]...)
	preimage = appendU32le(preimage, tx.Locktime)
	preimage = appendU32le(preimage, hashType)

	return sha256d(preimage)
}

func hashForPrevouts(tx *Tx, hashType uint32, cache *SighashCache) [32]byte {
	if hashType&SighashAnyoneCanPay != 0 {
		return [32]byte{}
	}
	if cache != nil && cache.hasPrevouts {
		return cache.prevouts
	}
	buf := make([]byte, 0, len(tx.Inputs)*36)
	for _, in := range tx.Inputs {
		buf = outpointBytes(buf, in.PrevOut)
	}
	h := sha256d(buf)
	if cache != nil {
		cache.prevouts = h
		cache.hasPrevouts = true
	}
	return h
}

func hashForSequences(tx *Tx, hashType uint32, cache *SighashCache) [32]byte {
	if hashType&SighashAnyoneCanPay != 0 || hashType&0x1f == SighashSingle || hashType&0x1f == SighashNone {
		return [32]byte{}
	}
	if cache != nil && cache.hasSequences {
		return cache.sequences
	}
	buf := make([]byte, 0, len(tx.Inputs)*4)
	for _, in := range tx.Inputs {
		buf = appendU32le(buf, in.Sequence)
	}
	h := sha256d(buf)
	if cache != nil {
		cache.sequences = h
		cache.hasSequences = true
	}
	return h
}

func hashForOutputs(tx *Tx, index int, hashType uint32, cache *SighashCache) [32]byte {
	if hashType&0x1f == SighashSingle {
		if index >= len(tx.Outputs) {
			return [32]byte{}
		}
		return sha256d(TxOutputBytes(tx.Outputs[index]))
	}
	if hashType&0x1f == SighashNone {
		return [32]byte{}
	}
	if cache != nil && cache.hasOutputs {
		return cache.outputs
	}
	buf := make([]byte, 0)
	for _, out := range tx.Outputs {
		buf = append(buf, TxOutputBytes(out)...)
	}
	h := sha256d(buf)
	if cache != nil {
		cache.outputs = h
		cache.hasOutputs = true
	}
	return h
}
