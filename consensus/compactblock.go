package consensus

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
)

// MaxBlockSize bounds the anti-hash-DoS checks in Setup, matching the
// consensus block-size limit this package assumes as an external constant.
const MaxBlockSize = 4_000_000

// PrefilledTx carries a transaction the sender chose to include inline
// (NewSenderCompactBlock prefills only the coinbase) together with its
// differential index: the number of block slots skipped since the previous
// prefilled transaction (for the first one, its absolute position).
type PrefilledTx struct {
	Index uint32
	Tx    *Tx
}

// CompactBlockState is the receiver-side reconstruction state machine for a
// BIP152 compact block: a short-id list plus prefilled transactions, an
// "avail" slot vector being filled in, and an id-to-slot map used to place
// mempool hits as they are found.
type CompactBlockState struct {
	Header   BlockHeader
	KeyNonce uint64
	Sipkey   [32]byte

	IDs       []uint64
	Prefilled []PrefilledTx

	avail  []*Tx
	idMap  map[uint64]int
	count  int
}

// deriveSipkey computes sipkey = SHA-256(header(80) ‖ le64(key_nonce)),
// using the full 32-byte digest as siphash key material. This layout
// (single SHA-256, not double, over the 88-byte header+nonce preimage)
// mirrors the originating C implementation exactly, as required: bytes
// [0:8) become siphash k0 and [8:16) become k1 (see ShortID).
func deriveSipkey(header BlockHeader, keyNonce uint64) [32]byte {
	data := make([]byte, 0, 88)
	data = append(data, HeaderBytes(header)...)
	data = appendU64le(data, keyNonce)
	return sha256.Sum256(data)
}

// NewSenderCompactBlock builds the sender side of a compact block: the
// coinbase is prefilled at index 0, every other transaction contributes a
// short id over its (w)txid depending on witness.
func NewSenderCompactBlock(header BlockHeader, txs []*Tx, witness bool) (*CompactBlockState, error) {
	if len(txs) == 0 {
		return nil, txerr(ErrParse, 0, "compact block: empty tx list")
	}

	var nonceBytes [8]byte
	if _, err := rand.Read(nonceBytes[:]); err != nil {
		return nil, err
	}
	keyNonce := binary.LittleEndian.Uint64(nonceBytes[:])

	state := &CompactBlockState{
		Header:   header,
		KeyNonce: keyNonce,
		Sipkey:   deriveSipkey(header, keyNonce),
	}

	state.IDs = make([]uint64, 0, len(txs)-1)
	for _, tx := range txs[1:] {
		var h [32]byte
		if witness {
			h = WTxID(tx)
		} else {
			h = TxID(tx)
		}
		state.IDs = append(state.IDs, ShortID(h, state.Sipkey))
	}

	state.Prefilled = []PrefilledTx{{Index: 0, Tx: txs[0]}}

	return state, nil
}

// Setup initializes receiver-side reconstruction state from a decoded
// CompactBlockState (Header/KeyNonce/Sipkey/IDs/Prefilled already populated).
// It returns (false, nil) on a siphash collision, which callers must treat
// as a soft failure requiring a full-block fallback, and an error for any
// other rejection (total too small/large).
func (s *CompactBlockState) Setup() (bool, error) {
	total := len(s.Prefilled) + len(s.IDs)
	if total == 0 {
		return false, txerr(ErrParse, 0, "compact block: empty")
	}
	if total > MaxBlockSize/10 {
		return false, txerr(ErrParse, 0, "compact block: too many transactions")
	}
	if total > (MaxBlockSize-81)/60 {
		return false, txerr(ErrParse, 0, "compact block: anti-hash-dos limit")
	}

	s.avail = make([]*Tx, total)
	s.idMap = make(map[uint64]int, len(s.IDs))
	s.count = 0

	last := -1
	for i, pf := range s.Prefilled {
		last += int(pf.Index) + 1
		if last < 0 || last > 0xffff {
			return false, txerr(ErrParse, 0, "compact block: prefilled index out of range")
		}
		if last > len(s.IDs)+i {
			return false, txerr(ErrParse, 0, "compact block: prefilled index inconsistent")
		}
		s.avail[last] = pf.Tx
		s.count++
	}

	offset := 0
	for i, id := range s.IDs {
		for s.avail[i+offset] != nil {
			offset++
		}
		slot := i + offset
		if _, collide := s.idMap[id]; collide {
			cblog.Debugf("Compact block short-id collision, falling back to full request")
			return false, nil
		}
		s.idMap[id] = slot
	}

	return true, nil
}

// Place inserts tx (found, e.g., in the mempool) at the slot recorded for
// its short id and clears the map entry, per the "fill from mempool"
// primitive: callers compute each candidate's short id themselves and drive
// this loop; the core only exposes placement.
func (s *CompactBlockState) Place(id uint64, tx *Tx) bool {
	slot, ok := s.idMap[id]
	if !ok {
		return false
	}
	s.avail[slot] = tx
	s.count++
	delete(s.idMap, id)
	return true
}

// FillMissing consumes a BlockTxn response in avail-slot order, placing one
// response transaction per empty slot. It fails if the response runs out
// early, and succeeds only when every response transaction was consumed.
func (s *CompactBlockState) FillMissing(txs []*Tx) (bool, error) {
	total := len(s.Prefilled) + len(s.IDs)
	if len(s.avail) != total {
		return false, txerr(ErrParse, 0, "compact block: setup not called")
	}

	offset := 0
	for i := range s.avail {
		if s.avail[i] != nil {
			continue
		}
		if offset >= len(txs) {
			return false, nil
		}
		s.avail[i] = txs[offset]
		offset++
		s.count++
	}

	return offset == len(txs), nil
}

// MissingIndices returns the ascending list of avail slots still empty,
// i.e. the indices a get_block_txn request should ask for.
func (s *CompactBlockState) MissingIndices() []uint32 {
	out := make([]uint32, 0)
	for i, tx := range s.avail {
		if tx == nil {
			out = append(out, uint32(i))
		}
	}
	return out
}

// Finalize requires every slot to be filled and returns the transactions in
// block order, transferring ownership out of the state (subsequent calls to
// Finalize observe an empty avail vector).
func (s *CompactBlockState) Finalize() ([]*Tx, error) {
	total := len(s.Prefilled) + len(s.IDs)
	if len(s.avail) != total || s.count != total {
		return nil, txerr(ErrParse, 0, "compact block: not fully reconstructed")
	}

	out := make([]*Tx, total)
	for i, tx := range s.avail {
		if tx == nil {
			return nil, txerr(ErrParse, 0, "compact block: internal inconsistency")
		}
		out[i] = tx
		s.avail[i] = nil
	}
	return out, nil
}

// EncodeCompactBlock serializes a CompactBlockState to its wire form:
// header ‖ key_nonce ‖ short-id vector ‖ prefilled-tx vector. witness
// selects whether prefilled transactions are written with or without their
// witness data.
func EncodeCompactBlock(s *CompactBlockState, witness bool) []byte {
	dst := make([]byte, 0, 88+len(s.IDs)*6)
	dst = append(dst, HeaderBytes(s.Header)...)
	dst = appendU64le(dst, s.KeyNonce)

	dst = append(dst, CompactSize(len(s.IDs)).Encode()...)
	for _, id := range s.IDs {
		lo := uint32(id & 0xffffffff)
		hi := uint16(id >> 32)
		dst = appendU32le(dst, lo)
		dst = appendU16le(dst, hi)
	}

	dst = append(dst, CompactSize(len(s.Prefilled)).Encode()...)
	for _, pf := range s.Prefilled {
		dst = append(dst, CompactSize(uint64(pf.Index)).Encode()...)
		if witness {
			dst = append(dst, TxBytes(pf.Tx)...)
		} else {
			dst = append(dst, TxNoWitnessBytes(pf.Tx)...)
		}
	}

	return dst
}

// DecodeCompactBlock parses the wire form produced by EncodeCompactBlock.
// It does not call Setup; callers must do that once IDs/Prefilled are
// populated.
func DecodeCompactBlock(b []byte) (*CompactBlockState, error) {
	if len(b) < HeaderSize {
		return nil, txerr(ErrParse, 0, "compact block: truncated header")
	}
	header, err := ParseHeader(b[:HeaderSize])
	if err != nil {
		return nil, err
	}

	c := newCursor(b[HeaderSize:])
	keyNonce, err := c.readU64LE()
	if err != nil {
		return nil, txerr(ErrParse, 0, "compact block: key_nonce")
	}

	idLen, err := c.readCompactSize()
	if err != nil {
		return nil, txerr(ErrParse, 0, "compact block: id count")
	}
	ids := make([]uint64, idLen)
	for i := range ids {
		lo, err := c.readU32LE()
		if err != nil {
			return nil, txerr(ErrParse, 0, "compact block: id lo")
		}
		hi, err := c.readU16LE()
		if err != nil {
			return nil, txerr(ErrParse, 0, "compact block: id hi")
		}
		ids[i] = (uint64(hi) << 32) | uint64(lo)
	}

	txLen, err := c.readCompactSize()
	if err != nil {
		return nil, txerr(ErrParse, 0, "compact block: prefilled count")
	}
	prefilled := make([]PrefilledTx, txLen)
	for i := range prefilled {
		index, err := c.readCompactSize()
		if err != nil {
			return nil, txerr(ErrParse, 0, "compact block: prefilled index")
		}
		if index > 0xffff || index >= txLen+idLen {
			return nil, txerr(ErrParse, 0, "compact block: prefilled index out of range")
		}
		tx, err := parseTxCursor(c)
		if err != nil {
			return nil, err
		}
		prefilled[i] = PrefilledTx{Index: uint32(index), Tx: tx}
	}

	return &CompactBlockState{
		Header:    header,
		KeyNonce:  keyNonce,
		Sipkey:    deriveSipkey(header, keyNonce),
		IDs:       ids,
		Prefilled: prefilled,
	}, nil
}

// GetBlockTxnRequest carries the block hash and the missing-index list for
// a get_block_txn request, wire-encoded as first index then successive
// deltas minus one.
type GetBlockTxnRequest struct {
	BlockHash [32]byte
	Indices   []uint32
}

func EncodeGetBlockTxn(r GetBlockTxnRequest) []byte {
	dst := make([]byte, 0, 32+len(r.Indices)*2)
	dst = append(dst, r.BlockHash[:]...)
	dst = append(dst, CompactSize(len(r.Indices)).Encode()...)
	for i, idx := range r.Indices {
		v := idx
		if i > 0 {
			v = idx - r.Indices[i-1] - 1
		}
		dst = append(dst, CompactSize(v).Encode()...)
	}
	return dst
}

func DecodeGetBlockTxn(b []byte) (GetBlockTxnRequest, error) {
	c := newCursor(b)
	hashBytes, err := c.readExact(32)
	if err != nil {
		return GetBlockTxnRequest{}, txerr(ErrParse, 0, "get_block_txn: hash")
	}
	var hash [32]byte
	copy(hash[:], hashBytes)

	n, err := c.readCompactSize()
	if err != nil {
		return GetBlockTxnRequest{}, txerr(ErrParse, 0, "get_block_txn: count")
	}

	indices := make([]uint32, n)
	var offset uint64
	for i := range indices {
		delta, err := c.readCompactSize()
		if err != nil {
			return GetBlockTxnRequest{}, txerr(ErrParse, 0, "get_block_txn: index")
		}
		idx := delta + offset
		if idx > 0xffff {
			return GetBlockTxnRequest{}, txerr(ErrParse, 0, "get_block_txn: index out of range")
		}
		indices[i] = uint32(idx)
		offset = idx + 1
	}

	return GetBlockTxnRequest{BlockHash: hash, Indices: indices}, nil
}

// BlockTxnResponse carries the requested transactions for a get_block_txn
// request, in request order.
type BlockTxnResponse struct {
	BlockHash [32]byte
	Txs       []*Tx
}

func EncodeBlockTxn(r BlockTxnResponse) []byte {
	dst := make([]byte, 0, 32)
	dst = append(dst, r.BlockHash[:]...)
	dst = append(dst, CompactSize(len(r.Txs)).Encode()...)
	for _, tx := range r.Txs {
		dst = append(dst, TxBytes(tx)...)
	}
	return dst
}

func DecodeBlockTxn(b []byte) (BlockTxnResponse, error) {
	if len(b) < 32 {
		return BlockTxnResponse{}, txerr(ErrParse, 0, "block_txn: truncated hash")
	}
	var hash [32]byte
	copy(hash[:], b[:32])

	c := newCursor(b[32:])
	n, err := c.readCompactSize()
	if err != nil {
		return BlockTxnResponse{}, txerr(ErrParse, 0, "block_txn: count")
	}

	txs := make([]*Tx, n)
	for i := range txs {
		tx, err := parseTxCursor(c)
		if err != nil {
			return BlockTxnResponse{}, err
		}
		txs[i] = tx
	}

	return BlockTxnResponse{BlockHash: hash, Txs: txs}, nil
}
