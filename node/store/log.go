package store

import (
	"github.com/btcsuite/btclog/v2"

	logbackend "btccore.dev/node/log"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "CSTR"

// log is set at init to a subsystem logger on the shared backend;
// DisableLog swaps it for btclog.Disabled.
var log btclog.Logger

func init() {
	UseLogger(logbackend.NewSubsystemLogger(Subsystem))
}

// DisableLog disables all logging output.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
