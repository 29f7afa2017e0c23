package store

import "btccore.dev/node/consensus"

// Coin is an unspent output together with the provenance of the
// transaction that created it. Spent marks a coin staged for deletion by
// the view that holds it; a coin is never persisted with Spent set — it is
// deleted instead.
type Coin struct {
	Version  int32
	Height   uint32
	Coinbase bool
	Spent    bool
	Output   consensus.TxOutput
}

// View is an in-memory transactional overlay on the UTXO set: a staged
// outpoint→coin overlay plus an undo stack recording every coin consumed,
// in the exact order SpendCoin removed it. A view is created per
// connect/disconnect and consumed by the matching Save/Reconnect/Disconnect
// call.
type View struct {
	overlay map[consensus.Outpoint]*Coin
	undo    []Coin
}

// NewView returns an empty overlay with no staged changes.
func NewView() *View {
	return &View{overlay: make(map[consensus.Outpoint]*Coin)}
}

// GetCoin looks up a coin staged in this view's overlay only; it does not
// consult the backing store — callers use ChainDB.Spend to seed a view from
// disk before consulting it.
func (v *View) GetCoin(op consensus.Outpoint) (*Coin, bool) {
	c, ok := v.overlay[op]
	return c, ok
}

// AddCoin stages a newly created, unspent coin at op.
func (v *View) AddCoin(op consensus.Outpoint, c Coin) {
	c.Spent = false
	v.overlay[op] = &c
}

// SpendCoin marks the coin at op as spent and pushes a copy onto the undo
// stack. It returns false if op is not present in the overlay.
func (v *View) SpendCoin(op consensus.Outpoint) (Coin, bool) {
	c, ok := v.overlay[op]
	if !ok {
		return Coin{}, false
	}
	restored := *c
	restored.Spent = false
	v.undo = append(v.undo, restored)
	c.Spent = true
	return restored, true
}

// Overlay exposes the full set of staged outpoint→coin changes, for Save
// and Reconnect to flush to the backing store.
func (v *View) Overlay() map[consensus.Outpoint]*Coin {
	return v.overlay
}

// UndoStack exposes the ordered list of coins consumed by this view, for
// Save and Reconnect to persist as the block's undo record.
func (v *View) UndoStack() []Coin {
	return v.undo
}

// PopUndo removes and returns the most recently pushed undo entry, used by
// Disconnect while rebuilding a view from a stored undo record.
func (v *View) PopUndo() (Coin, bool) {
	if len(v.undo) == 0 {
		return Coin{}, false
	}
	last := v.undo[len(v.undo)-1]
	v.undo = v.undo[:len(v.undo)-1]
	return last, true
}

// PushUndo appends a coin to the undo stack directly; used by Disconnect
// when loading a stored undo record before walking it.
func (v *View) PushUndo(c Coin) {
	v.undo = append(v.undo, c)
}

// UndoEmpty reports whether the undo stack has been fully consumed.
func (v *View) UndoEmpty() bool {
	return len(v.undo) == 0
}

// UndoRecord is the ordered list of coins consumed by a block, stored to
// support disconnecting it later. The coins do not carry their outpoints:
// on disconnect, each non-coinbase input is matched to one record in
// transaction order, reversed, exactly as it was pushed during connect.
type UndoRecord struct {
	Spent []Coin
}
