package store

import (
	"math/big"

	"btccore.dev/node/consensus"
)

// nullRef marks an absent arena reference or an absent on-disk file/offset
// field, encoded on the wire as 0xFFFFFFFF.
const nullRef = -1

// Entry is one node of the block-index DAG: a header plus its height,
// accumulated work, and the flat-file locations of its block and undo
// records. prev/next are stable arena indices rather than pointers, so the
// tree (prev) and the main-chain linked list (next) can both exist without
// introducing reference cycles.
type Entry struct {
	Hash      [32]byte
	Header    consensus.BlockHeader
	Height    uint32
	Chainwork *big.Int

	BlockFile int32
	BlockPos  int32
	UndoFile  int32
	UndoPos   int32

	Prev int32
	Next int32
}

// NewEntry builds an Entry with unwritten block/undo locations and no
// arena links; callers fill Prev/Next in once the entry is inserted.
func NewEntry(hash [32]byte, header consensus.BlockHeader, height uint32, chainwork *big.Int) *Entry {
	return &Entry{
		Hash:      hash,
		Header:    header,
		Height:    height,
		Chainwork: chainwork,
		BlockFile: nullRef,
		BlockPos:  nullRef,
		UndoFile:  nullRef,
		UndoPos:   nullRef,
		Prev:      nullRef,
		Next:      nullRef,
	}
}

// Index is the in-memory block-index DAG: an arena of Entry nodes addressed
// by stable slot, a hash lookup table, and the main-chain height vector.
// heights[h] always equals the arena slot of the unique main-chain entry at
// height h; tail is the last element of heights; head is the height-0
// genesis entry.
type Index struct {
	arena   []*Entry
	hashes  map[[32]byte]int32
	heights []int32
	head    int32
	tail    int32
}

// NewIndex returns an empty block index with no genesis installed yet.
func NewIndex() *Index {
	return &Index{
		hashes: make(map[[32]byte]int32),
		head:   nullRef,
		tail:   nullRef,
	}
}

// Get resolves a hash to its Entry, if present.
func (ix *Index) Get(hash [32]byte) (*Entry, bool) {
	slot, ok := ix.hashes[hash]
	if !ok {
		return nil, false
	}
	return ix.arena[slot], true
}

// ByHeight resolves a main-chain height to its Entry.
func (ix *Index) ByHeight(height uint32) (*Entry, bool) {
	if height >= uint32(len(ix.heights)) {
		return nil, false
	}
	slot := ix.heights[height]
	if slot == nullRef {
		return nil, false
	}
	return ix.arena[slot], true
}

// Head returns the genesis entry.
func (ix *Index) Head() (*Entry, bool) {
	if ix.head == nullRef {
		return nil, false
	}
	return ix.arena[ix.head], true
}

// Tail returns the current main-chain tip entry.
func (ix *Index) Tail() (*Entry, bool) {
	if ix.tail == nullRef {
		return nil, false
	}
	return ix.arena[ix.tail], true
}

// insert places e into the arena and hash table without touching
// prev/next links or heights; callers wire those up afterward.
func (ix *Index) insert(e *Entry) int32 {
	slot := int32(len(ix.arena))
	ix.arena = append(ix.arena, e)
	ix.hashes[e.Hash] = slot
	return slot
}

// prevOf resolves e's Prev arena slot, if linked.
func (ix *Index) prevOf(e *Entry) (*Entry, bool) {
	if e.Prev == nullRef {
		return nil, false
	}
	return ix.arena[e.Prev], true
}

// linkMainChain installs e as the new tail: sets prev.Next, grows heights,
// and advances tail (and head, the first time, for the height-0 entry).
func (ix *Index) linkMainChain(e *Entry) {
	slot := ix.hashes[e.Hash]
	if e.Height == 0 {
		ix.head = slot
	}
	if prev, ok := ix.prevOf(e); ok {
		prevSlot := ix.hashes[prev.Hash]
		ix.arena[prevSlot].Next = slot
	}
	for uint32(len(ix.heights)) <= e.Height {
		ix.heights = append(ix.heights, nullRef)
	}
	ix.heights[e.Height] = slot
	ix.tail = slot
}

// unlinkTail pops the current tail off heights, clears its parent's Next
// link, and moves tail back to the parent. Used by Disconnect.
func (ix *Index) unlinkTail() {
	if ix.tail == nullRef {
		return
	}
	e := ix.arena[ix.tail]
	ix.heights = ix.heights[:e.Height]
	if prev, ok := ix.prevOf(e); ok {
		prevSlot := ix.hashes[prev.Hash]
		ix.arena[prevSlot].Next = nullRef
		ix.tail = prevSlot
	} else {
		ix.tail = nullRef
	}
}

// InsertOrGet returns e's existing arena entry if already present (by
// hash), otherwise inserts it fresh and links Prev to its parent's entry
// if one is already known.
func (ix *Index) InsertOrGet(e *Entry) *Entry {
	if existing, ok := ix.Get(e.Hash); ok {
		return existing
	}
	if parent, ok := ix.Get(e.Header.PrevBlock); ok {
		e.Prev = ix.hashes[parent.Hash]
	}
	ix.insert(e)
	return e
}
