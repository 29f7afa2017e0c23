package consensus

// Outpoint references a specific output of a specific transaction.
type Outpoint struct {
	Hash  [32]byte
	Index uint32
}

// IsNull reports whether the outpoint is the null outpoint used by coinbase
// inputs: an all-zero hash and index 0xFFFFFFFF.
func (o Outpoint) IsNull() bool {
	return o.Hash == [32]byte{} && o.Index == 0xFFFFFFFF
}

// TxInput is one spend reference inside a transaction.
type TxInput struct {
	PrevOut  Outpoint
	Script   []byte
	Sequence uint32
	Witness  [][]byte
}

// IsRBF reports whether the input's sequence opts the transaction into
// replace-by-fee signaling.
func (in TxInput) IsRBF() bool {
	return in.Sequence < 0xFFFFFFFE
}

// TxOutput is one payment created by a transaction.
type TxOutput struct {
	Value  int64
	Script []byte
}

// MaxMoney is the maximum number of satoshis that may ever exist, used to
// bound individual output values and their cumulative total.
const MaxMoney = 21_000_000 * 100_000_000

// Tx is a parsed Bitcoin-compatible transaction, legacy or segwit.
type Tx struct {
	Version  int32
	Inputs   []TxInput
	Outputs  []TxOutput
	Locktime uint32
}

// HasWitness reports whether any input carries a non-empty witness stack;
// this determines whether the segwit marker/flag is emitted on encode.
func (tx *Tx) HasWitness() bool {
	for _, in := range tx.Inputs {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// TxID is double-SHA256 of the legacy (no-witness) encoding.
func TxID(tx *Tx) [32]byte {
	return sha256d(TxNoWitnessBytes(tx))
}

// WTxID is double-SHA256 of the segwit encoding. It equals TxID when no
// input carries a witness.
func WTxID(tx *Tx) [32]byte {
	return sha256d(TxBytes(tx))
}

func outpointBytes(dst []byte, o Outpoint) []byte {
	dst = append(dst, o.Hash[:]...)
	return appendU32le(dst, o.Index)
}

func scriptBytes(dst []byte, script []byte) []byte {
	dst = append(dst, CompactSize(len(script)).Encode()...)
	return append(dst, script...)
}

func txInputNoWitnessBytes(dst []byte, in TxInput) []byte {
	dst = outpointBytes(dst, in.PrevOut)
	dst = scriptBytes(dst, in.Script)
	return appendU32le(dst, in.Sequence)
}

// TxOutputBytes serializes a single output: value (i64le) ‖ compact-sized
// script.
func TxOutputBytes(out TxOutput) []byte {
	dst := make([]byte, 0, 8+1+len(out.Script))
	dst = appendI64le(dst, out.Value)
	dst = scriptBytes(dst, out.Script)
	return dst
}

func witnessStackBytes(dst []byte, stack [][]byte) []byte {
	dst = append(dst, CompactSize(len(stack)).Encode()...)
	for _, item := range stack {
		dst = scriptBytes(dst, item)
	}
	return dst
}

// TxNoWitnessBytes serializes the legacy encoding: version ‖ inputs ‖
// outputs ‖ locktime, with no witness data and no segwit marker/flag.
func TxNoWitnessBytes(tx *Tx) []byte {
	dst := make([]byte, 0, 64+32*len(tx.Inputs)+32*len(tx.Outputs))
	dst = appendI32le(dst, tx.Version)
	dst = append(dst, CompactSize(len(tx.Inputs)).Encode()...)
	for _, in := range tx.Inputs {
		dst = txInputNoWitnessBytes(dst, in)
	}
	dst = append(dst, CompactSize(len(tx.Outputs)).Encode()...)
	for _, out := range tx.Outputs {
		dst = append(dst, TxOutputBytes(out)...)
	}
	return appendU32le(dst, tx.Locktime)
}

// TxBytes serializes the full wire encoding: legacy fields plus, when any
// input carries a witness, the 0x00 0x01 marker/flag and per-input witness
// stacks.
func TxBytes(tx *Tx) []byte {
	if !tx.HasWitness() {
		return TxNoWitnessBytes(tx)
	}

	dst := make([]byte, 0, 64+32*len(tx.Inputs)+32*len(tx.Outputs))
	dst = appendI32le(dst, tx.Version)
	dst = append(dst, 0x00, 0x01)
	dst = append(dst, CompactSize(len(tx.Inputs)).Encode()...)
	for _, in := range tx.Inputs {
		dst = txInputNoWitnessBytes(dst, in)
	}
	dst = append(dst, CompactSize(len(tx.Outputs)).Encode()...)
	for _, out := range tx.Outputs {
		dst = append(dst, TxOutputBytes(out)...)
	}
	for _, in := range tx.Inputs {
		dst = witnessStackBytes(dst, in.Witness)
	}
	return appendU32le(dst, tx.Locktime)
}

// ParseTx decodes a transaction from its wire encoding, accepting both the
// legacy and segwit forms. It rejects a decode that would be ambiguous on
// re-encode (zero inputs with a non-empty output list, which could be
// confused with a segwit marker), and rejects nonzero flag bits other than
// bit 0.
func ParseTx(b []byte) (*Tx, error) {
	c := newCursor(b)
	return parseTxCursor(c)
}

// parseTxCursor is ParseTx's implementation, taking an existing cursor so
// callers parsing a longer stream (compact blocks, block bodies) can decode
// one transaction and keep reading from exactly where it left off.
func parseTxCursor(c *cursor) (*Tx, error) {
	version, err := c.readU32LE()
	if err != nil {
		return nil, txerr(ErrParse, 0, "version")
	}

	segwit := false
	var flags byte
	if c.remaining() >= 2 && c.b[c.pos] == 0x00 && c.b[c.pos+1] != 0x00 {
		marker, err := c.readExact(2)
		if err != nil {
			return nil, txerr(ErrParse, 0, "marker/flag")
		}
		flags = marker[1]
		segwit = true
	}

	inCount, err := c.readCompactSize()
	if err != nil {
		return nil, txerr(ErrParse, 0, "input count")
	}

	inputs := make([]TxInput, inCount)
	for i := range inputs {
		in, err := parseTxInput(c)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}

	outCount, err := c.readCompactSize()
	if err != nil {
		return nil, txerr(ErrParse, 0, "output count")
	}

	if inCount == 0 && outCount != 0 {
		return nil, txerr(ErrParse, 0, "ambiguous zero-input encoding")
	}

	outputs := make([]TxOutput, outCount)
	for i := range outputs {
		out, err := parseTxOutput(c)
		if err != nil {
			return nil, err
		}
		outputs[i] = out
	}

	if segwit {
		if flags&0x01 != 0 {
			for i := range inputs {
				stack, err := parseWitnessStack(c)
				if err != nil {
					return nil, err
				}
				inputs[i].Witness = stack
			}
			flags &^= 0x01
		}
		if flags != 0 {
			return nil, txerr(ErrParse, 0, "nonzero flag bits")
		}
	}

	locktime, err := c.readU32LE()
	if err != nil {
		return nil, txerr(ErrParse, 0, "locktime")
	}

	return &Tx{
		Version:  int32(version),
		Inputs:   inputs,
		Outputs:  outputs,
		Locktime: locktime,
	}, nil
}

func parseTxInput(c *cursor) (TxInput, error) {
	hashBytes, err := c.readExact(32)
	if err != nil {
		return TxInput{}, txerr(ErrParse, 0, "prevout hash")
	}
	var hash [32]byte
	copy(hash[:], hashBytes)

	index, err := c.readU32LE()
	if err != nil {
		return TxInput{}, txerr(ErrParse, 0, "prevout index")
	}

	script, err := parseScript(c)
	if err != nil {
		return TxInput{}, err
	}

	sequence, err := c.readU32LE()
	if err != nil {
		return TxInput{}, txerr(ErrParse, 0, "sequence")
	}

	return TxInput{
		PrevOut:  Outpoint{Hash: hash, Index: index},
		Script:   script,
		Sequence: sequence,
	}, nil
}

func parseTxOutput(c *cursor) (TxOutput, error) {
	value, err := c.readU64LE()
	if err != nil {
		return TxOutput{}, txerr(ErrParse, 0, "value")
	}
	script, err := parseScript(c)
	if err != nil {
		return TxOutput{}, err
	}
	return TxOutput{Value: int64(value), Script: script}, nil
}

const maxScriptSize = 10_000

func parseScript(c *cursor) ([]byte, error) {
	n, err := c.readCompactSize()
	if err != nil {
		return nil, txerr(ErrParse, 0, "script length")
	}
	if n > maxScriptSize {
		return nil, txerr(ErrParse, 0, "script too large")
	}
	b, err := c.readExact(int(n))
	if err != nil {
		return nil, txerr(ErrParse, 0, "script body")
	}
	return append([]byte(nil), b...), nil
}

func parseWitnessStack(c *cursor) ([][]byte, error) {
	n, err := c.readCompactSize()
	if err != nil {
		return nil, txerr(ErrParse, 0, "witness stack count")
	}
	stack := make([][]byte, n)
	for i := range stack {
		item, err := parseScript(c)
		if err != nil {
			return nil, err
		}
		stack[i] = item
	}
	return stack, nil
}
