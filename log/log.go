// Package log provides the shared btclog backend that each package's own
// log.go wires a subsystem-tagged logger into via UseLogger.
package log

import (
	"os"

	"github.com/btcsuite/btclog/v2"
)

// Backend is the single process-wide log backend every subsystem logger is
// created from, so output from consensus, compact-block relay, and the
// chain store interleaves on one stream instead of each opening its own.
var Backend = btclog.NewBackend(os.Stdout)

// NewSubsystemLogger creates a tagged logger backed by Backend. tag should
// be a short upper-case subsystem code, e.g. "CSTR" or "CNSN".
func NewSubsystemLogger(tag string) btclog.Logger {
	return Backend.Logger(tag)
}

// Disabled is the logger that discards everything; it is the same logger
// each package's DisableLog installs.
var Disabled = btclog.Disabled
