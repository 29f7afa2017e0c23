package consensus

import "testing"

func makeBlockTxs(n int) []*Tx {
	txs := make([]*Tx, n)
	coinbase := &Tx{
		Version: 1,
		Inputs:  []TxInput{{PrevOut: Outpoint{Index: 0xFFFFFFFF}, Script: []byte{0x01, 0x02}}},
		Outputs: []TxOutput{{Value: 5_000_000_000, Script: []byte{0x51}}},
	}
	txs[0] = coinbase
	for i := 1; i < n; i++ {
		txs[i] = &Tx{
			Version: 1,
			Inputs:  []TxInput{{PrevOut: Outpoint{Hash: [32]byte{byte(i)}, Index: 0}, Sequence: 0xFFFFFFFF}},
			Outputs: []TxOutput{{Value: int64(1000 + i), Script: []byte{0x51}}},
		}
	}
	return txs
}

func TestCompactBlockRoundTrip(t *testing.T) {
	header := BlockHeader{Version: 1, Time: 1234}
	txs := makeBlockTxs(5)

	sender, err := NewSenderCompactBlock(header, txs, false)
	if err != nil {
		t.Fatalf("NewSenderCompactBlock: %v", err)
	}

	wire := EncodeCompactBlock(sender, false)
	receiver, err := DecodeCompactBlock(wire)
	if err != nil {
		t.Fatalf("DecodeCompactBlock: %v", err)
	}

	ok, err := receiver.Setup()
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !ok {
		t.Fatalf("expected no siphash collision")
	}

	missing := receiver.MissingIndices()
	req := GetBlockTxnRequest{BlockHash: HeaderHash(header), Indices: missing}
	reqWire := EncodeGetBlockTxn(req)
	decodedReq, err := DecodeGetBlockTxn(reqWire)
	if err != nil {
		t.Fatalf("DecodeGetBlockTxn: %v", err)
	}
	if len(decodedReq.Indices) != len(missing) {
		t.Fatalf("get_block_txn index round trip length mismatch")
	}
	for i, idx := range missing {
		if decodedReq.Indices[i] != idx {
			t.Fatalf("get_block_txn index round trip mismatch at %d: got %d want %d", i, decodedReq.Indices[i], idx)
		}
	}

	var respTxs []*Tx
	for _, idx := range decodedReq.Indices {
		respTxs = append(respTxs, txs[idx])
	}

	done, err := receiver.FillMissing(respTxs)
	if err != nil {
		t.Fatalf("FillMissing: %v", err)
	}
	if !done {
		t.Fatalf("expected FillMissing to consume all response transactions")
	}

	final, err := receiver.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(final) != len(txs) {
		t.Fatalf("finalize length mismatch: got %d want %d", len(final), len(txs))
	}
	for i := range txs {
		if TxID(final[i]) != TxID(txs[i]) {
			t.Fatalf("finalize order mismatch at %d", i)
		}
	}
}

func TestCompactBlockSetupRejectsEmpty(t *testing.T) {
	s := &CompactBlockState{}
	if _, err := s.Setup(); err == nil {
		t.Fatalf("expected rejection of empty compact block")
	}
}

func TestGetBlockTxnIndexRoundTrip(t *testing.T) {
	indices := []uint32{2, 5, 6, 10}
	wire := EncodeGetBlockTxn(GetBlockTxnRequest{Indices: indices})
	decoded, err := DecodeGetBlockTxn(wire)
	if err != nil {
		t.Fatalf("DecodeGetBlockTxn: %v", err)
	}
	if len(decoded.Indices) != len(indices) {
		t.Fatalf("length mismatch")
	}
	for i, v := range indices {
		if decoded.Indices[i] != v {
			t.Fatalf("index mismatch at %d: got %d want %d", i, decoded.Indices[i], v)
		}
	}
}
