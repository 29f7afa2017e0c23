package consensus

import (
	"github.com/btcsuite/btclog/v2"

	logbackend "btccore.dev/node/log"
)

// Subsystems defines the logging codes used within this package: tx and
// script checking under CNSN, compact-block relay state under its own CBLK
// tag since the two log at very different rates.
const (
	Subsystem             = "CNSN"
	CompactBlockSubsystem = "CBLK"
)

// log and cblog are set at init to subsystem loggers on the shared backend;
// DisableLog swaps both for btclog.Disabled.
var (
	log   btclog.Logger
	cblog btclog.Logger
)

func init() {
	UseLogger(logbackend.NewSubsystemLogger(Subsystem))
	UseCompactBlockLogger(logbackend.NewSubsystemLogger(CompactBlockSubsystem))
}

// DisableLog disables all logging output.
func DisableLog() {
	UseLogger(btclog.Disabled)
	UseCompactBlockLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// UseCompactBlockLogger uses a specified Logger for compact-block relay
// state (BIP-152 reconstruction, get-block-txn round trips).
func UseCompactBlockLogger(logger btclog.Logger) {
	cblog = logger
}
