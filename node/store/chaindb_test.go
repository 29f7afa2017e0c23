package store

import (
	"bytes"
	"testing"

	"btccore.dev/node/consensus"

	bolt "go.etcd.io/bbolt"
)

const testBits = 0x1d00ffff

// buildGenesis mirrors real Bitcoin genesis semantics: Bootstrap saves it
// with an empty view, so its coinbase output is never staged into the
// coin set and can never be referenced as an input by a later block.
func buildGenesis() *consensus.Block {
	coinbase := &consensus.Tx{
		Version: 1,
		Inputs:  []consensus.TxInput{{PrevOut: consensus.Outpoint{Index: 0xFFFFFFFF}, Script: []byte{0x00, 0x01}}},
		Outputs: []consensus.TxOutput{{Value: 5_000_000_000, Script: []byte{0x51}}},
	}
	header := consensus.BlockHeader{Version: 1, Time: 1, Bits: testBits}
	return &consensus.Block{Header: header, Txs: []*consensus.Tx{coinbase}}
}

func buildCoinbaseOnlyBlock(parent *consensus.Block, time uint32) *consensus.Block {
	coinbase := &consensus.Tx{
		Version: 1,
		Inputs:  []consensus.TxInput{{PrevOut: consensus.Outpoint{Index: 0xFFFFFFFF}, Script: []byte{0x01, 0x02}}},
		Outputs: []consensus.TxOutput{{Value: 5_000_000_000, Script: []byte{0x51}}},
	}
	header := consensus.BlockHeader{
		Version:   1,
		PrevBlock: consensus.BlockHash(parent),
		Time:      time,
		Bits:      testBits,
	}
	return &consensus.Block{Header: header, Txs: []*consensus.Tx{coinbase}}
}

func buildSpendingBlock(parent *consensus.Block, spend consensus.Outpoint, time uint32) *consensus.Block {
	coinbase := &consensus.Tx{
		Version: 1,
		Inputs:  []consensus.TxInput{{PrevOut: consensus.Outpoint{Index: 0xFFFFFFFF}, Script: []byte{0x02, 0x03}}},
		Outputs: []consensus.TxOutput{{Value: 5_000_000_000, Script: []byte{0x51}}},
	}
	spender := &consensus.Tx{
		Version: 1,
		Inputs:  []consensus.TxInput{{PrevOut: spend, Sequence: 0xFFFFFFFF}},
		Outputs: []consensus.TxOutput{{Value: 4_900_000_000, Script: []byte{0x52}}},
	}
	header := consensus.BlockHeader{
		Version:   1,
		PrevBlock: consensus.BlockHash(parent),
		Time:      time,
		Bits:      testBits,
	}
	return &consensus.Block{Header: header, Txs: []*consensus.Tx{coinbase, spender}}
}

func TestChainDBGenesisBootstrap(t *testing.T) {
	dir := t.TempDir()
	genesis := buildGenesis()
	db, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.NeedsGenesis() {
		t.Fatalf("Open with a genesis block must bootstrap before returning")
	}

	head, ok := db.index.Head()
	if !ok || head.Hash != consensus.BlockHash(genesis) {
		t.Fatalf("head mismatch after bootstrap")
	}
	tail, ok := db.index.Tail()
	if !ok || tail.Hash != head.Hash {
		t.Fatalf("tail should equal genesis right after bootstrap")
	}
	if len(db.index.heights) != 1 {
		t.Fatalf("expected heights length 1, got %d", len(db.index.heights))
	}
}

func TestChainDBConnectDisconnectReconnectPreservesUTXOSet(t *testing.T) {
	dir := t.TempDir()
	genesis := buildGenesis()
	db, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	block1 := buildCoinbaseOnlyBlock(genesis, 2)
	if err := db.Connect(block1, true, 2); err != nil {
		t.Fatalf("Connect(block1): %v", err)
	}

	block1CoinbaseOutpoint := consensus.Outpoint{Hash: consensus.TxID(block1.Txs[0]), Index: 0}
	block2 := buildSpendingBlock(block1, block1CoinbaseOutpoint, 3)

	if err := db.Connect(block2, true, 3); err != nil {
		t.Fatalf("Connect(block2): %v", err)
	}

	tail, ok := db.index.Tail()
	if !ok || tail.Hash != consensus.BlockHash(block2) {
		t.Fatalf("tail did not advance to block2")
	}

	raw, err := db.files.Read(tail.BlockFile, tail.BlockPos)
	if err != nil {
		t.Fatalf("read back block bytes: %v", err)
	}
	if !bytes.Equal(raw, consensus.BlockBytes(block2)) {
		t.Fatalf("block bytes read back do not match what was written")
	}

	coinsAfterConnect := dumpCoins(t, db)

	if err := db.Disconnect(tail, block2); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	newTail, ok := db.index.Tail()
	if !ok || newTail.Hash != consensus.BlockHash(block1) {
		t.Fatalf("tail did not rewind to block1 after disconnect")
	}

	entry, ok := db.index.Get(consensus.BlockHash(block2))
	if !ok {
		t.Fatalf("disconnected entry should remain in the index")
	}
	if err := db.Reconnect(entry, mustRebuildView(t, db, block2, entry.Height), true, 3); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}

	coinsAfterReconnect := dumpCoins(t, db)
	if len(coinsAfterConnect) != len(coinsAfterReconnect) {
		t.Fatalf("coin set size changed across disconnect/reconnect: %d vs %d", len(coinsAfterConnect), len(coinsAfterReconnect))
	}
	for k, v := range coinsAfterConnect {
		if !bytes.Equal(coinsAfterReconnect[k], v) {
			t.Fatalf("coin %x differs after reconnect", k)
		}
	}
}

func TestOpenFreshStoreWithoutGenesisFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir, nil); err == nil {
		t.Fatalf("expected Open to fail on a fresh store with no genesis supplied")
	}
}

func TestOpenReopenDoesNotRequireGenesisAgain(t *testing.T) {
	dir := t.TempDir()
	genesis := buildGenesis()
	db, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen without genesis: %v", err)
	}
	defer reopened.Close()
	if reopened.NeedsGenesis() {
		t.Fatalf("reopened store should already have a recorded tip")
	}
	head, ok := reopened.index.Head()
	if !ok || head.Hash != consensus.BlockHash(genesis) {
		t.Fatalf("reopened head does not match original genesis")
	}
}

func TestOpenRejectsMismatchedGenesisOnReopen(t *testing.T) {
	dir := t.TempDir()
	genesis := buildGenesis()
	db, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	other := buildGenesis()
	other.Header.Time = 2
	if _, err := Open(dir, other); err == nil {
		t.Fatalf("expected Open to reject a genesis that does not match the store's recorded genesis")
	}
}

func mustRebuildView(t *testing.T, db *ChainDB, block *consensus.Block, height uint32) *View {
	t.Helper()
	view, err := db.ConnectView(block, height)
	if err != nil {
		t.Fatalf("ConnectView: %v", err)
	}
	return view
}

func dumpCoins(t *testing.T, db *ChainDB) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	err := db.kv.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCoin).ForEach(func(k, v []byte) error {
			out[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("dumpCoins: %v", err)
	}
	return out
}
