package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// flatFileRotateSize is the maximum size a <n>.dat file is allowed to grow
// to before a write rolls over to the next-numbered file.
const flatFileRotateSize = 512 * 1024 * 1024

// FlatFiles is the append-only block/undo record store: a numbered
// sequence of <prefix>/blocks/<n>.dat files, each holding a stream of
// le32(length) ‖ payload records. Only the active (highest-numbered) file
// is ever appended to; older files are opened read-only on demand to
// satisfy Read calls.
type FlatFiles struct {
	dir string

	activeIndex int32
	activeFile  *os.File
	activePos   int32
}

func flatFilePath(dir string, index int32) string {
	return filepath.Join(dir, fmt.Sprintf("%d.dat", index))
}

// OpenFlatFiles opens (creating if absent) the active file at (index, pos)
// and asserts its on-disk size matches pos — the sole consistency check
// between the KV store's recorded position and the flat files themselves.
func OpenFlatFiles(dir string, index, pos int32) (*FlatFiles, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(flatFilePath(dir, index), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("flatfile: open %d.dat: %w", index, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flatfile: stat %d.dat: %w", index, err)
	}
	if info.Size() != int64(pos) {
		_ = f.Close()
		return nil, fmt.Errorf("flatfile: corruption: %d.dat size %d != recorded pos %d", index, info.Size(), pos)
	}
	return &FlatFiles{dir: dir, activeIndex: index, activeFile: f, activePos: pos}, nil
}

func (ff *FlatFiles) Close() error {
	if ff == nil || ff.activeFile == nil {
		return nil
	}
	return ff.activeFile.Close()
}

// Position reports the active (file, pos) pair, for the caller to persist
// into meta["F"] as part of the same commit that records the write.
func (ff *FlatFiles) Position() (int32, int32) {
	return ff.activeIndex, ff.activePos
}

// Append writes le32(len(payload)) ‖ payload to the active file, rotating
// to a freshly opened <n+1>.dat first if the write would cross the 512 MiB
// boundary. It returns the (file, pos) of the record's length prefix, the
// value Entry.BlockFile/BlockPos (or UndoFile/UndoPos) must record.
func (ff *FlatFiles) Append(payload []byte) (int32, int32, error) {
	recordLen := 4 + len(payload)
	if int64(ff.activePos)+int64(recordLen) > flatFileRotateSize {
		if err := ff.rotate(); err != nil {
			return 0, 0, err
		}
	}

	fileIndex, pos := ff.activeIndex, ff.activePos

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := ff.activeFile.Write(lenPrefix[:]); err != nil {
		return 0, 0, fmt.Errorf("flatfile: write length: %w", err)
	}
	if _, err := ff.activeFile.Write(payload); err != nil {
		return 0, 0, fmt.Errorf("flatfile: write payload: %w", err)
	}
	ff.activePos += int32(recordLen)

	return fileIndex, pos, nil
}

// Sync fsyncs the active file; callers consult shouldSync to decide when
// this is worth the cost.
func (ff *FlatFiles) Sync() error {
	return ff.activeFile.Sync()
}

func (ff *FlatFiles) rotate() error {
	if err := ff.activeFile.Sync(); err != nil {
		return fmt.Errorf("flatfile: fsync before rotate: %w", err)
	}
	if err := ff.activeFile.Close(); err != nil {
		return fmt.Errorf("flatfile: close before rotate: %w", err)
	}
	next := ff.activeIndex + 1
	f, err := os.OpenFile(flatFilePath(ff.dir, next), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("flatfile: open %d.dat: %w", next, err)
	}
	ff.activeFile = f
	ff.activeIndex = next
	ff.activePos = 0
	log.Infof("Rotated flat file in %s to %d.dat", ff.dir, next)
	return nil
}

// Read returns the payload of the record at (fileIndex, pos). pos is the
// offset of the record's 4-byte length prefix, matching what Append
// returned and what an Entry's block/undo position fields carry.
func (ff *FlatFiles) Read(fileIndex, pos int32) ([]byte, error) {
	var f *os.File
	if fileIndex == ff.activeIndex {
		f = ff.activeFile
	} else {
		opened, err := os.Open(flatFilePath(ff.dir, fileIndex))
		if err != nil {
			return nil, fmt.Errorf("flatfile: open %d.dat: %w", fileIndex, err)
		}
		defer opened.Close()
		f = opened
	}

	var lenPrefix [4]byte
	if _, err := f.ReadAt(lenPrefix[:], int64(pos)); err != nil {
		return nil, fmt.Errorf("flatfile: read length at %d.dat:%d: %w", fileIndex, pos, err)
	}
	n := binary.LittleEndian.Uint32(lenPrefix[:])
	payload := make([]byte, n)
	if _, err := f.ReadAt(payload, int64(pos)+4); err != nil {
		return nil, fmt.Errorf("flatfile: read payload at %d.dat:%d: %w", fileIndex, pos, err)
	}
	return payload, nil
}
