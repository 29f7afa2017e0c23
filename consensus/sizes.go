package consensus

// BaseSize is the legacy (no-witness) serialized size in bytes.
func BaseSize(tx *Tx) int {
	return len(TxNoWitnessBytes(tx))
}

// WitnessSize is the number of bytes contributed by the segwit marker/flag
// and witness stacks, or 0 if no input carries a witness.
func WitnessSize(tx *Tx) int {
	if !tx.HasWitness() {
		return 0
	}
	return len(TxBytes(tx)) - len(TxNoWitnessBytes(tx))
}

// Weight is 4*base_size + witness_size, per BIP141.
func Weight(tx *Tx) int {
	return 4*BaseSize(tx) + WitnessSize(tx)
}

// VSize is ceil(weight/4), the virtual size used for fee-rate calculations.
func VSize(tx *Tx) int {
	w := Weight(tx)
	return (w + 3) / 4
}

// LegacySigops counts OP_CHECKSIG/OP_CHECKSIGVERIFY (1) and
// OP_CHECKMULTISIG/OP_CHECKMULTISIGVERIFY (up to 20, or the preceding
// small-int push) occurrences in script, the classic pre-segwit accounting.
func LegacySigops(script []byte) int {
	count := 0
	lastOp := byte(0)
	for i := 0; i < len(script); {
		op := script[i]
		if op >= 0x01 && op <= 0x60 {
			_, header := pushDataLen(script, i)
			if header != 0 {
				n, _ := pushDataLen(script, i)
				i += header + n
				lastOp = op
				continue
			}
		}
		switch op {
		case 0xac, 0xad: // OP_CHECKSIG, OP_CHECKSIGVERIFY
			count++
		case 0xae, 0xaf: // OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY
			if lastOp >= 0x51 && lastOp <= 0x60 {
				count += int(lastOp - 0x50)
			} else {
				count += 20
			}
		}
		lastOp = op
		i++
	}
	return count
}

// TxLegacySigops sums LegacySigops over every one of the transaction's own
// input scripts (scriptSig) and output scripts (scriptPubKey). The coin a
// given input spends never enters this count.
func TxLegacySigops(tx *Tx) int {
	total := 0
	for _, in := range tx.Inputs {
		total += LegacySigops(in.Script)
	}
	for _, out := range tx.Outputs {
		total += LegacySigops(out.Script)
	}
	return total
}

func isCoinbaseTx(tx *Tx) bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.IsNull()
}

// SigopCost computes the BIP141 weighted sigop cost for the whole
// transaction: legacy sigops over every input+output script (4x), p2sh
// sigops over the redeem script extracted from the input script when the
// coin it spends is p2sh (4x), and witness-program sigops for p2wpkh /
// p2sh-p2wpkh coins (1x). coins resolves an input's prevout to the coin it
// spends, in the same shape CheckInputs uses; a coinbase transaction has no
// real prevouts and contributes only its legacy term.
func SigopCost(tx *Tx, coins func(Outpoint) (Coin, uint32, bool, bool)) int {
	cost := 4 * TxLegacySigops(tx)
	if isCoinbaseTx(tx) {
		return cost
	}

	for _, in := range tx.Inputs {
		coin, _, _, ok := coins(in.PrevOut)
		if !ok {
			continue
		}
		coinScript := coin.Script

		if _, ok := IsP2SH(coinScript); ok {
			program, ok := extractSingleProgram(in.Script)
			if !ok {
				continue
			}
			cost += 4 * LegacySigops(program)
			if _, ok := IsP2WPKH(program); ok {
				cost++
			}
			continue
		}

		if _, ok := IsP2WPKH(coinScript); ok {
			cost++
		}
	}

	return cost
}

// VirtualSigops is ceil(cost/4), the transaction's virtual sigop count used
// against a block's sigop budget.
func VirtualSigops(cost int) int {
	return (cost + 3) / 4
}
