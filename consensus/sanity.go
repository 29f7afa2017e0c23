package consensus

const (
	// CoinbaseMaturity is the number of blocks a coinbase output must wait
	// before it can be spent.
	CoinbaseMaturity = 100

	maxBaseTxSize = 1_000_000
)

// CheckSanity enforces the structural consensus rules that can be checked
// from the transaction alone, in the order and with the reject reasons and
// misbehavior scores specified for check_sanity.
func CheckSanity(tx *Tx) error {
	if len(tx.Inputs) == 0 {
		return txerr(ErrVinEmpty, 100, "")
	}
	if len(tx.Outputs) == 0 {
		return txerr(ErrVoutEmpty, 100, "")
	}
	if len(TxNoWitnessBytes(tx)) > maxBaseTxSize {
		return txerr(ErrOversize, 100, "")
	}

	var total int64
	for _, out := range tx.Outputs {
		if out.Value < 0 {
			return txerr(ErrVoutNegative, 100, "")
		}
		if out.Value > MaxMoney {
			return txerr(ErrVoutTooLarge, 100, "")
		}
		total += out.Value
		if total > MaxMoney {
			return txerr(ErrTotalTooLarge, 100, "")
		}
	}

	seen := make(map[Outpoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seen[in.PrevOut]; dup {
			return txerr(ErrInputsDuplicate, 100, "")
		}
		seen[in.PrevOut] = struct{}{}
	}

	isCoinbase := len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.IsNull()
	if isCoinbase {
		n := len(tx.Inputs[0].Script)
		if n < 2 || n > 100 {
			return txerr(ErrCoinbaseLength, 100, "")
		}
	} else {
		for _, in := range tx.Inputs {
			if in.PrevOut.IsNull() {
				return txerr(ErrPrevoutNull, 10, "")
			}
		}
	}

	return nil
}

// CheckInputs enforces the consensus rules that require the coins being
// spent: presence, coinbase maturity, and value conservation. height is the
// height the transaction would be confirmed at. It does not enforce a sigop
// budget: that check is a per-block accounting rule, and no block-assembly
// component exists in this package to supply the 80,000 sigop-cost budget
// to check it against (see SigopCost/VirtualSigops, computed and tested but
// deliberately unwired here).
func CheckInputs(tx *Tx, coins func(Outpoint) (Coin, uint32, bool, bool), height uint32) error {
	var sumIn int64
	for _, in := range tx.Inputs {
		coin, coinHeight, coinbase, ok := coins(in.PrevOut)
		if !ok {
			return txerr(ErrMissingOrSpent, 0, "")
		}
		if coinbase && height < coinHeight+CoinbaseMaturity {
			return txerr(ErrPrematureSpend, 0, "")
		}
		if coin.Value < 0 || coin.Value > MaxMoney {
			return txerr(ErrInputValuesRange, 100, "")
		}
		sumIn += coin.Value
		if sumIn > MaxMoney {
			return txerr(ErrInputValuesRange, 100, "")
		}
	}

	var sumOut int64
	for _, out := range tx.Outputs {
		sumOut += out.Value
	}

	if sumIn < sumOut {
		return txerr(ErrInBelowOut, 100, "")
	}

	fee := sumIn - sumOut
	if fee < 0 {
		return txerr(ErrFeeNegative, 100, "")
	}
	if fee > MaxMoney {
		return txerr(ErrFeeOutOfRange, 100, "")
	}

	return nil
}
