package consensus

// BlockHeader is the 80-byte block header. Its fields are carried as inert
// data: this package parses and hashes headers but does not validate
// proof-of-work or the merkle root, both out of scope per the package's
// Non-goals.
type BlockHeader struct {
	Version    int32
	PrevBlock  [32]byte
	MerkleRoot [32]byte
	Time       uint32
	Bits       uint32
	Nonce      uint32
}

const HeaderSize = 80

// HeaderBytes serializes a header to its fixed 80-byte wire form.
func HeaderBytes(h BlockHeader) []byte {
	dst := make([]byte, 0, HeaderSize)
	dst = appendI32le(dst, h.Version)
	dst = append(dst, h.PrevBlock[:]...)
	dst = append(dst, h.MerkleRoot[:]...)
	dst = appendU32le(dst, h.Time)
	dst = appendU32le(dst, h.Bits)
	dst = appendU32le(dst, h.Nonce)
	return dst
}

// ParseHeader decodes a fixed 80-byte header.
func ParseHeader(b []byte) (BlockHeader, error) {
	if len(b) != HeaderSize {
		return BlockHeader{}, txerr(ErrParse, 0, "header: wrong length")
	}
	c := newCursor(b)
	version, _ := c.readU32LE()
	prevBlock, _ := c.readExact(32)
	merkleRoot, _ := c.readExact(32)
	t, _ := c.readU32LE()
	bits, _ := c.readU32LE()
	nonce, _ := c.readU32LE()

	var h BlockHeader
	h.Version = int32(version)
	copy(h.PrevBlock[:], prevBlock)
	copy(h.MerkleRoot[:], merkleRoot)
	h.Time = t
	h.Bits = bits
	h.Nonce = nonce
	return h, nil
}

// HeaderHash is double-SHA256 of the serialized header.
func HeaderHash(h BlockHeader) [32]byte {
	return sha256d(HeaderBytes(h))
}
