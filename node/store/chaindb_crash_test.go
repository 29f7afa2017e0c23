package store

import (
	"os"
	"path/filepath"
	"testing"

	"btccore.dev/node/consensus"
)

// TestOpenDetectsTruncatedFlatFile exercises the crash-consistency check:
// if the active block file is shorter than the position meta["F"] recorded
// (as it would be after a crash mid-write that never reached fsync), Open
// must refuse rather than silently resume at the wrong offset.
func TestOpenDetectsTruncatedFlatFile(t *testing.T) {
	dir := t.TempDir()
	genesis := buildGenesis()
	db, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	blockFile := filepath.Join(dir, "blocks", "0.dat")
	if err := os.Truncate(blockFile, 0); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	if _, err := Open(dir, genesis); err == nil {
		t.Fatalf("expected Open to detect the truncated block file and fail")
	}
}

// TestFlatFilesRotationAcrossChainDB forces the active flat file near the
// rotation boundary through the same Append path Connect uses, confirming
// the 512 MiB split is honored end to end and not just at the FlatFiles
// unit level.
func TestFlatFilesRotationAcrossChainDB(t *testing.T) {
	dir := t.TempDir()
	genesis := buildGenesis()
	db, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	db.files.activePos = flatFileRotateSize - 2

	block1 := buildCoinbaseOnlyBlock(genesis, 2)
	if err := db.Connect(block1, true, 2); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	tail, ok := db.index.Tail()
	if !ok || tail.Hash != consensus.BlockHash(block1) {
		t.Fatalf("tail did not advance after rotation-inducing connect")
	}
	if tail.BlockFile != 1 {
		t.Fatalf("expected block to land in file 1 after rotation, got %d", tail.BlockFile)
	}
}
