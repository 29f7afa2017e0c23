package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// ChainDir returns the on-disk directory for a given network under datadir:
// datadir/chains/<network>/, holding the append-only block/undo files
// under blocks/ and the key-value store under chain/.
func ChainDir(datadir string, network string) string {
	return filepath.Join(datadir, "chains", network)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
