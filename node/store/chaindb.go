package store

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"path/filepath"

	"btccore.dev/node/consensus"

	bolt "go.etcd.io/bbolt"
)

// ChainDB is the durable chain store: the bbolt-backed key-value store
// (meta/coin/index/tip), the append-only flat block/undo files, and the
// in-memory block-index DAG they together describe. It is single-writer —
// callers must serialize Connect/Reconnect/Disconnect themselves — but
// Spend's read-only lookups may run concurrently with a write, since bbolt
// gives every View transaction its own consistent snapshot.
type ChainDB struct {
	prefix string
	kv     *KV
	files  *FlatFiles
	index  *Index
}

func fileInfoKey(file, pos int32) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(file))
	binary.LittleEndian.PutUint32(b[4:8], uint32(pos))
	return b[:]
}

func decodeFileInfo(b []byte) (int32, int32, error) {
	if len(b) != 8 {
		return 0, 0, fmt.Errorf("chaindb: bad file-info length %d", len(b))
	}
	return int32(binary.LittleEndian.Uint32(b[0:4])), int32(binary.LittleEndian.Uint32(b[4:8])), nil
}

// Open creates prefix and prefix/blocks if missing, opens the key-value
// store at prefix/chain, recovers the active flat-file position from
// meta["F"] (or (0,0) if absent), and loads the in-memory block index. If
// the store has no recorded tip yet, it bootstraps genesis itself before
// returning, so a caller never observes NeedsGenesis() true on a database
// Open handed back successfully. genesis may be nil only when the store is
// known to already be initialized; Open fails if it turns out to be needed.
// If the store already has a genesis entry, genesis (when supplied) must
// hash to that same entry — Open refuses to silently straddle two chains.
func Open(prefix string, genesis *consensus.Block) (*ChainDB, error) {
	if err := ensureDir(prefix); err != nil {
		return nil, err
	}
	blocksDir := filepath.Join(prefix, "blocks")
	if err := ensureDir(blocksDir); err != nil {
		return nil, err
	}

	kv, err := OpenKV(filepath.Join(prefix, "chain"))
	if err != nil {
		return nil, err
	}

	var fileIndex, pos int32
	err = kv.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(metaKeyFileInfo)
		if v == nil {
			return nil
		}
		fileIndex, pos, err = decodeFileInfo(v)
		return err
	})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	files, err := OpenFlatFiles(blocksDir, fileIndex, pos)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	db := &ChainDB{prefix: prefix, kv: kv, files: files, index: NewIndex()}
	if err := db.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if db.NeedsGenesis() {
		if genesis == nil {
			_ = db.Close()
			return nil, fmt.Errorf("chaindb: open: fresh store requires a genesis block")
		}
		if err := db.Bootstrap(genesis); err != nil {
			_ = db.Close()
			return nil, err
		}
	} else if genesis != nil {
		head, _ := db.index.Head()
		if head.Hash != consensus.BlockHash(genesis) {
			_ = db.Close()
			return nil, fmt.Errorf("chaindb: open: store's genesis %x does not match supplied genesis %x", head.Hash, consensus.BlockHash(genesis))
		}
	}

	return db, nil
}

func (db *ChainDB) Close() error {
	if db == nil {
		return nil
	}
	err1 := db.files.Close()
	err2 := db.kv.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NeedsGenesis reports whether the store has no recorded tip yet.
func (db *ChainDB) NeedsGenesis() bool {
	return db.index.tail == nullRef
}

// Index exposes the in-memory block-index DAG for read-only inspection.
func (db *ChainDB) Index() *Index {
	return db.index
}

// load rebuilds the in-memory block-index DAG from the index sub-database.
// If meta["R"] is absent, the store is uninitialized and load returns
// immediately, leaving NeedsGenesis true.
func (db *ChainDB) load() error {
	var tipHash [32]byte
	var hasTip bool
	if err := db.kv.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(metaKeyTipHash)
		if v == nil {
			return nil
		}
		copy(tipHash[:], v)
		hasTip = true
		return nil
	}); err != nil {
		return err
	}
	if !hasTip {
		return nil
	}

	entries := make(map[[32]byte]*Entry)
	if err := db.kv.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).ForEach(func(k, v []byte) error {
			var h [32]byte
			copy(h[:], k)
			e, err := decodeEntry(v)
			if err != nil {
				return fmt.Errorf("chaindb: load: decode %x: %w", h, err)
			}
			entries[h] = e
			return nil
		})
	}); err != nil {
		return err
	}

	for _, e := range entries {
		db.index.insert(e)
	}

	var genesisHash [32]byte
	var haveGenesis bool
	for hash, e := range entries {
		if e.Height == 0 {
			genesisHash = hash
			haveGenesis = true
			continue
		}
		parent, ok := entries[e.Header.PrevBlock]
		if !ok {
			return fmt.Errorf("chaindb: load: missing parent for %x", hash)
		}
		e.Prev = db.index.hashes[parent.Hash]
	}
	if !haveGenesis {
		return fmt.Errorf("chaindb: load: no height-0 entry")
	}

	tip, ok := entries[tipHash]
	if !ok {
		return fmt.Errorf("chaindb: load: tip hash not present in index")
	}

	cur := tip
	for {
		slot := db.index.hashes[cur.Hash]
		for uint32(len(db.index.heights)) <= cur.Height {
			db.index.heights = append(db.index.heights, nullRef)
		}
		db.index.heights[cur.Height] = slot
		if cur.Height == 0 {
			break
		}
		parent := entries[cur.Header.PrevBlock]
		parentSlot := db.index.hashes[parent.Hash]
		db.index.arena[parentSlot].Next = slot
		cur = parent
	}

	db.index.head = db.index.hashes[genesisHash]
	db.index.tail = db.index.hashes[tipHash]
	return nil
}

// Bootstrap installs the genesis block as height 0 and the initial tip,
// via the same Save path every later block takes, with a fresh empty view.
func (db *ChainDB) Bootstrap(genesis *consensus.Block) error {
	if !db.NeedsGenesis() {
		return fmt.Errorf("chaindb: bootstrap: already initialized")
	}
	work, err := WorkFromBits(genesis.Header.Bits)
	if err != nil {
		return err
	}
	entry := NewEntry(consensus.BlockHash(genesis), genesis.Header, 0, work)
	log.Infof("Bootstrapping chain store with genesis block %x", entry.Hash)
	return db.Save(entry, consensus.BlockBytes(genesis), NewView(), false, 0)
}

// shouldSync implements the fsync policy: always sync near the chain tip
// in wall-clock time or on a round height, skip it during bulk historical
// replay where durability cost would dominate.
func (db *ChainDB) shouldSync(entry *Entry, localTimeValid bool, localTime uint32) bool {
	if !localTimeValid {
		return true
	}
	if entry.Header.Time > localTime {
		return true
	}
	const day = 24 * 60 * 60
	if localTime-entry.Header.Time < day {
		return true
	}
	return entry.Height%1000 == 0
}

// Save connects entry at the tip: it writes the raw block to the active
// flat file if not already recorded (entry.BlockPos == -1), applies view's
// coin overlay and, if entry.UndoPos is unset, its undo stack, updates the
// file-info and tip-hash meta keys, and commits. Connect and Bootstrap
// always pass a non-nil view; Reconnect reuses Save with blockBytes nil
// because the block is already on disk.
func (db *ChainDB) Save(entry *Entry, blockBytes []byte, view *View, localTimeValid bool, localTime uint32) error {
	err := db.kv.Update(func(tx *bolt.Tx) error {
		if entry.BlockPos == nullRef {
			if blockBytes == nil {
				return fmt.Errorf("chaindb: save: block not yet written and no bytes supplied")
			}
			fileIndex, pos, err := db.files.Append(blockBytes)
			if err != nil {
				return err
			}
			entry.BlockFile, entry.BlockPos = fileIndex, pos
			if db.shouldSync(entry, localTimeValid, localTime) {
				if err := db.files.Sync(); err != nil {
					return err
				}
			}
		}

		if view != nil {
			coins := tx.Bucket(bucketCoin)
			for op, c := range view.Overlay() {
				key := encodeOutpointKey(op)
				if c.Spent {
					if err := coins.Delete(key); err != nil {
						return err
					}
					continue
				}
				val, err := encodeCoin(*c)
				if err != nil {
					return err
				}
				if err := coins.Put(key, val); err != nil {
					return err
				}
			}

			if len(view.UndoStack()) > 0 && entry.UndoPos == nullRef {
				undoBytes, err := encodeUndoRecord(UndoRecord{Spent: view.UndoStack()})
				if err != nil {
					return err
				}
				fileIndex, pos, err := db.files.Append(undoBytes)
				if err != nil {
					return err
				}
				entry.UndoFile, entry.UndoPos = fileIndex, pos
			}
		}

		fileIndex, pos := db.files.Position()
		if err := tx.Bucket(bucketMeta).Put(metaKeyFileInfo, fileInfoKey(fileIndex, pos)); err != nil {
			return err
		}

		indexBytes, err := encodeEntry(entry)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(entry.Hash[:], indexBytes); err != nil {
			return err
		}

		tip := tx.Bucket(bucketTip)
		if entry.Height != 0 {
			if err := tip.Delete(entry.Header.PrevBlock[:]); err != nil {
				return err
			}
		}
		if err := tip.Put(entry.Hash[:], []byte{1}); err != nil {
			return err
		}

		if view != nil {
			if err := tx.Bucket(bucketMeta).Put(metaKeyTipHash, entry.Hash[:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.index.InsertOrGet(entry)
	db.index.linkMainChain(entry)
	return nil
}

// Reconnect re-applies a previously disconnected entry whose block bytes
// are already on disk: same commit shape as Save, without writing the raw
// block.
func (db *ChainDB) Reconnect(entry *Entry, view *View, localTimeValid bool, localTime uint32) error {
	if entry.BlockPos == nullRef {
		return fmt.Errorf("chaindb: reconnect: entry has no recorded block position")
	}
	return db.Save(entry, nil, view, localTimeValid, localTime)
}

// Spend looks up tx's input coins in the persisted coin set and inserts
// any found into view's overlay, skipping inputs already staged there
// (e.g. by an earlier transaction in the same block spending an output
// this one also references) and the null coinbase outpoint.
func (db *ChainDB) Spend(tx *consensus.Tx, view *View) error {
	return db.kv.View(func(btx *bolt.Tx) error {
		coins := btx.Bucket(bucketCoin)
		for _, in := range tx.Inputs {
			if in.PrevOut.IsNull() {
				continue
			}
			if _, ok := view.GetCoin(in.PrevOut); ok {
				continue
			}
			val := coins.Get(encodeOutpointKey(in.PrevOut))
			if val == nil {
				continue
			}
			c, err := decodeCoin(val)
			if err != nil {
				return fmt.Errorf("chaindb: spend: decode coin: %w", err)
			}
			view.overlay[in.PrevOut] = &c
		}
		return nil
	})
}

// ConnectView builds the view a new block stages against the current UTXO
// set: every non-coinbase input's coin is fetched via Spend and marked
// spent (pushing it onto the undo stack in transaction/input order), and
// every output becomes a new unspent coin at height.
func (db *ChainDB) ConnectView(block *consensus.Block, height uint32) (*View, error) {
	view := NewView()
	for i, tx := range block.Txs {
		coinbase := i == 0
		if !coinbase {
			if err := db.Spend(tx, view); err != nil {
				return nil, err
			}
			for _, in := range tx.Inputs {
				if _, ok := view.SpendCoin(in.PrevOut); !ok {
					return nil, fmt.Errorf("chaindb: connect: missing coin for %x:%d", in.PrevOut.Hash, in.PrevOut.Index)
				}
			}
		}
		txid := consensus.TxID(tx)
		for outIndex, out := range tx.Outputs {
			op := consensus.Outpoint{Hash: txid, Index: uint32(outIndex)}
			view.AddCoin(op, Coin{Height: height, Coinbase: coinbase, Output: out})
		}
	}
	return view, nil
}

// Connect builds and saves the Entry for block, which must directly extend
// the current tip.
func (db *ChainDB) Connect(block *consensus.Block, localTimeValid bool, localTime uint32) error {
	parent, ok := db.index.Get(block.Header.PrevBlock)
	if !ok {
		return fmt.Errorf("chaindb: connect: unknown parent %x", block.Header.PrevBlock)
	}
	work, err := WorkFromBits(block.Header.Bits)
	if err != nil {
		return err
	}
	chainwork := new(big.Int).Add(parent.Chainwork, work)

	hash := consensus.BlockHash(block)
	entry := NewEntry(hash, block.Header, parent.Height+1, chainwork)
	entry.Prev = db.index.hashes[parent.Hash]

	view, err := db.ConnectView(block, entry.Height)
	if err != nil {
		return err
	}
	log.Debugf("Connecting block %x at height %d", hash, entry.Height)
	return db.Save(entry, consensus.BlockBytes(block), view, localTimeValid, localTime)
}

// Disconnect undoes the current tip: it replays block's transactions in
// reverse, popping one undo coin per non-coinbase input (restoring it to
// the view) and marking every output the block created as deleted, then
// applies that view and rewinds meta["R"] and the in-memory tip to the
// entry's parent.
func (db *ChainDB) Disconnect(entry *Entry, block *consensus.Block) error {
	tail, ok := db.index.Tail()
	if !ok || tail.Hash != entry.Hash {
		return fmt.Errorf("chaindb: disconnect: entry is not the current tip")
	}
	log.Debugf("Disconnecting block %x at height %d", entry.Hash, entry.Height)

	var record UndoRecord
	if entry.UndoPos != nullRef {
		raw, err := db.files.Read(entry.UndoFile, entry.UndoPos)
		if err != nil {
			return err
		}
		record, err = decodeUndoRecord(raw)
		if err != nil {
			return err
		}
	}

	view := NewView()
	for _, c := range record.Spent {
		view.PushUndo(c)
	}

	for i := len(block.Txs) - 1; i >= 0; i-- {
		tx := block.Txs[i]
		coinbase := i == 0
		if !coinbase {
			for j := len(tx.Inputs) - 1; j >= 0; j-- {
				coin, ok := view.PopUndo()
				if !ok {
					return fmt.Errorf("chaindb: disconnect: undo stack exhausted")
				}
				view.AddCoin(tx.Inputs[j].PrevOut, coin)
			}
		}
		txid := consensus.TxID(tx)
		for outIndex := range tx.Outputs {
			op := consensus.Outpoint{Hash: txid, Index: uint32(outIndex)}
			view.overlay[op] = &Coin{Spent: true}
		}
	}
	if !view.UndoEmpty() {
		return fmt.Errorf("chaindb: disconnect: undo stack not fully consumed")
	}

	err := db.kv.Update(func(tx *bolt.Tx) error {
		coins := tx.Bucket(bucketCoin)
		for op, c := range view.Overlay() {
			key := encodeOutpointKey(op)
			if c.Spent {
				if err := coins.Delete(key); err != nil {
					return err
				}
				continue
			}
			val, err := encodeCoin(*c)
			if err != nil {
				return err
			}
			if err := coins.Put(key, val); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put(metaKeyTipHash, entry.Header.PrevBlock[:])
	})
	if err != nil {
		return err
	}

	db.index.unlinkTail()
	return nil
}
