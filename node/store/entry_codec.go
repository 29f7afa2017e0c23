package store

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"btccore.dev/node/consensus"
)

// entrySize is the fixed on-disk width of an encoded Entry: 32-byte hash,
// 80-byte header, 4-byte height, 32-byte chainwork, and four 4-byte
// file/position fields.
const entrySize = 32 + consensus.HeaderSize + 4 + 32 + 4 + 4 + 4 + 4

func encodeRef(v int32) uint32 {
	if v == nullRef {
		return 0xFFFFFFFF
	}
	return uint32(v)
}

func decodeRef(v uint32) int32 {
	if v == 0xFFFFFFFF {
		return nullRef
	}
	return int32(v)
}

// encodeEntry serializes an Entry using the fixed layout from the on-disk
// format: hash ‖ header ‖ height ‖ chainwork(32, big-endian) ‖ block_file ‖
// block_pos ‖ undo_file ‖ undo_pos. prev/next are not persisted; they are
// rebuilt by ChainDB.load from the header's prev_block field and the recorded tip.
func encodeEntry(e *Entry) ([]byte, error) {
	work := e.Chainwork
	if work == nil {
		work = new(big.Int)
	}
	workBytes := work.Bytes()
	if len(workBytes) > 32 {
		return nil, fmt.Errorf("entry: chainwork overflows 32 bytes")
	}

	out := make([]byte, entrySize)
	off := 0
	copy(out[off:off+32], e.Hash[:])
	off += 32
	copy(out[off:off+consensus.HeaderSize], consensus.HeaderBytes(e.Header))
	off += consensus.HeaderSize
	binary.LittleEndian.PutUint32(out[off:off+4], e.Height)
	off += 4
	copy(out[off+32-len(workBytes):off+32], workBytes)
	off += 32
	binary.LittleEndian.PutUint32(out[off:off+4], encodeRef(e.BlockFile))
	off += 4
	binary.LittleEndian.PutUint32(out[off:off+4], encodeRef(e.BlockPos))
	off += 4
	binary.LittleEndian.PutUint32(out[off:off+4], encodeRef(e.UndoFile))
	off += 4
	binary.LittleEndian.PutUint32(out[off:off+4], encodeRef(e.UndoPos))
	off += 4
	return out, nil
}

func decodeEntry(b []byte) (*Entry, error) {
	if len(b) != entrySize {
		return nil, fmt.Errorf("entry: expected %d bytes, got %d", entrySize, len(b))
	}
	off := 0
	var hash [32]byte
	copy(hash[:], b[off:off+32])
	off += 32

	header, err := consensus.ParseHeader(b[off : off+consensus.HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("entry: header: %w", err)
	}
	off += consensus.HeaderSize

	height := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	work := new(big.Int).SetBytes(b[off : off+32])
	off += 32

	blockFile := decodeRef(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	blockPos := decodeRef(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	undoFile := decodeRef(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	undoPos := decodeRef(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4

	return &Entry{
		Hash:      hash,
		Header:    header,
		Height:    height,
		Chainwork: work,
		BlockFile: blockFile,
		BlockPos:  blockPos,
		UndoFile:  undoFile,
		UndoPos:   undoPos,
		Prev:      nullRef,
		Next:      nullRef,
	}, nil
}
