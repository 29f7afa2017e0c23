package consensus

// MaxBlockWeight bounds the total serialized weight accepted for a block,
// mirroring the segwit block-weight limit.
const MaxBlockWeight = 4_000_000

// Block is a full header plus its transactions, coinbase first.
type Block struct {
	Header BlockHeader
	Txs    []*Tx
}

// BlockHash is the header's double-SHA256 identity.
func BlockHash(b *Block) [32]byte {
	return HeaderHash(b.Header)
}

// BlockBytes serializes a block as header ‖ CompactSize(tx count) ‖ txs,
// each transaction written with its witness data when present.
func BlockBytes(b *Block) []byte {
	dst := make([]byte, 0, HeaderSize+1+len(b.Txs)*256)
	dst = append(dst, HeaderBytes(b.Header)...)
	dst = append(dst, CompactSize(len(b.Txs)).Encode()...)
	for _, tx := range b.Txs {
		dst = append(dst, TxBytes(tx)...)
	}
	return dst
}

// ParseBlock decodes the wire form produced by BlockBytes.
func ParseBlock(raw []byte) (*Block, error) {
	if len(raw) < HeaderSize {
		return nil, txerr(ErrParse, 0, "block: truncated header")
	}
	header, err := ParseHeader(raw[:HeaderSize])
	if err != nil {
		return nil, err
	}

	c := newCursor(raw[HeaderSize:])
	count, err := c.readCompactSize()
	if err != nil {
		return nil, txerr(ErrParse, 0, "block: tx count")
	}

	txs := make([]*Tx, count)
	for i := range txs {
		tx, err := parseTxCursor(c)
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}

	return &Block{Header: header, Txs: txs}, nil
}
