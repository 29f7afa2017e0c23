package consensus

import "testing"

func TestTxLegacySigopsCountsOwnScriptsOnly(t *testing.T) {
	tx := &Tx{
		Inputs: []TxInput{
			{Script: []byte{opCheckSig}},
		},
		Outputs: []TxOutput{
			{Script: P2PKHScript([20]byte{1})},
		},
	}
	// scriptSig contributes 1 (OP_CHECKSIG), scriptPubKey contributes 1.
	if got := TxLegacySigops(tx); got != 2 {
		t.Fatalf("TxLegacySigops = %d, want 2", got)
	}
}

func TestSigopCostLegacyIgnoresCoinScript(t *testing.T) {
	tx := &Tx{
		Inputs: []TxInput{
			{PrevOut: Outpoint{Hash: [32]byte{1}}},
		},
		Outputs: []TxOutput{
			{Script: P2PKHScript([20]byte{2})},
		},
	}
	coinScript := P2PKHScript([20]byte{3}) // carries its own OP_CHECKSIG
	coins := func(Outpoint) (Coin, uint32, bool, bool) {
		return Coin{Value: 1000, Script: coinScript}, 0, false, true
	}
	// Legacy term is 4x the tx's own in+out scripts (0 + 1), the coin's
	// script is not a p2sh/p2wpkh program so it contributes nothing else.
	if got := SigopCost(tx, coins); got != 4 {
		t.Fatalf("SigopCost = %d, want 4 (coin script must not be double-counted)", got)
	}
}

func TestSigopCostP2WPKHCoin(t *testing.T) {
	tx := &Tx{
		Inputs: []TxInput{
			{PrevOut: Outpoint{Hash: [32]byte{1}}},
		},
		Outputs: []TxOutput{
			{Script: P2PKHScript([20]byte{2})},
		},
	}
	coins := func(Outpoint) (Coin, uint32, bool, bool) {
		return Coin{Value: 1000, Script: P2WPKHScript([20]byte{4})}, 0, false, true
	}
	if got := SigopCost(tx, coins); got != 4+1 {
		t.Fatalf("SigopCost = %d, want 5 (4 legacy + 1 witness)", got)
	}
}

func TestSigopCostP2SHP2WPKHCoin(t *testing.T) {
	redeem := P2WPKHScript([20]byte{5})
	scriptSig := pushScript(redeem)
	tx := &Tx{
		Inputs: []TxInput{
			{PrevOut: Outpoint{Hash: [32]byte{1}}, Script: scriptSig},
		},
		Outputs: []TxOutput{
			{Script: P2PKHScript([20]byte{2})},
		},
	}
	var hash [20]byte
	coins := func(Outpoint) (Coin, uint32, bool, bool) {
		return Coin{Value: 1000, Script: P2SHScript(hash)}, 0, false, true
	}
	// Legacy term is 4*1 (the output's own OP_CHECKSIG-bearing script), the
	// redeem program has no legacy sigops of its own, and the witness
	// program inside it contributes 1.
	if got := SigopCost(tx, coins); got != 4+1 {
		t.Fatalf("SigopCost = %d, want 5 (4 legacy + 1 witness)", got)
	}
}

func TestSigopCostCoinbaseSkipsCoinLookup(t *testing.T) {
	tx := &Tx{
		Inputs: []TxInput{
			{PrevOut: Outpoint{Index: 0xFFFFFFFF}, Script: []byte{0x01, 0x02}},
		},
		Outputs: []TxOutput{
			{Script: P2PKHScript([20]byte{1})},
		},
	}
	coins := func(Outpoint) (Coin, uint32, bool, bool) {
		t.Fatalf("coinbase transactions must not look up a coin")
		return Coin{}, 0, false, false
	}
	if got := SigopCost(tx, coins); got != 4 {
		t.Fatalf("SigopCost = %d, want 4", got)
	}
}
