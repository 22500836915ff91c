// Package wal implements the write-ahead log: an append-only file sharing
// the same block/record format as an SSTable (package sstable), durable
// per append, replayed and discarded at engine recovery.
package wal

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sushrut141/dharmadb/dberr"
	"github.com/sushrut141/dharmadb/record"
	"github.com/sushrut141/dharmadb/sstable"
)

// FileName is the deterministic name of the WAL file within a data
// directory; exactly one exists at any observable quiescent point.
const FileName = "wal.log"

// WAL is an append-only, block-framed log file. Append blocks until its
// bytes (including any still-partial trailing block) have been written and
// fsynced, so a successful Append return is a durability guarantee.
type WAL struct {
	path      string
	file      *os.File
	blockSize int
	packer    *record.Packer
	offset    int64 // absolute offset of the start of the in-progress block
}

// Create makes a new WAL file at {dataDir}/wal.log. If one already exists,
// that signals an unclean shutdown and Create fails with KindPathDirty —
// the caller must explicitly invoke Recover first.
func Create(dataDir string, blockSize int) (*WAL, error) {
	path := filepath.Join(dataDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return nil, dberr.New(dberr.KindPathDirty, path)
	} else if !os.IsNotExist(err) {
		return nil, dberr.Wrap(dberr.KindWalLogCreationFailed, err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, dberr.Wrap(dberr.KindWalLogCreationFailed, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindWalLogCreationFailed, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, dberr.Wrap(dberr.KindWalLogCreationFailed, err)
	}
	return &WAL{
		path:      path,
		file:      f,
		blockSize: blockSize,
		packer:    record.NewPacker(blockSize),
	}, nil
}

// Append encodes payload into one or more records and writes them, fsyncing
// before returning. Both any newly sealed full blocks and the still-open
// partial block are persisted every call, so a crash between appends never
// loses an acknowledged write even though the block it lives in isn't full
// yet.
func (w *WAL) Append(payload []byte) error {
	sealed := w.packer.Append(payload)
	for _, block := range sealed {
		if _, err := w.file.WriteAt(block, w.offset); err != nil {
			return dberr.Wrap(dberr.KindWalWriteFailed, err)
		}
		w.offset += int64(len(block))
	}
	if pending := w.packer.Pending(); len(pending) > 0 {
		if _, err := w.file.WriteAt(pending, w.offset); err != nil {
			return dberr.Wrap(dberr.KindWalWriteFailed, err)
		}
	}
	if err := w.file.Sync(); err != nil {
		return dberr.Wrap(dberr.KindWalWriteFailed, err)
	}
	return nil
}

// Reset deletes the current WAL and creates a fresh one in its place,
// called after a successful flush.
func (w *WAL) Reset() (*WAL, error) {
	if err := w.Cleanup(); err != nil {
		return nil, dberr.Wrap(dberr.KindWalLogCreationFailed, err)
	}
	dataDir := filepath.Dir(w.path)
	return Create(dataDir, w.blockSize)
}

// Cleanup closes and deletes the WAL file, called on clean shutdown.
func (w *WAL) Cleanup() error {
	w.file.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return dberr.Wrap(dberr.KindWalCleanupFailed, err)
	}
	return nil
}

// Recover replays every entry in the WAL at {dataDir}/wal.log in append
// order and deletes the file afterward. A partial trailing record — one
// whose fragments run past the file's real length because of a crash
// mid-append — is discarded silently rather than failing recovery. Returns
// (nil, nil) if no WAL file exists.
func Recover(dataDir string, blockSize int) ([][]byte, error) {
	path := filepath.Join(dataDir, FileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dberr.Wrap(dberr.KindWalBootstrapFailed, err)
	}

	reader, err := sstable.Open(path, blockSize)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindWalBootstrapFailed, err)
	}
	defer reader.Close()

	var entries [][]byte
	for reader.HasNext() {
		value, err := reader.Read()
		if err != nil {
			if sstable.IsTruncated(err) {
				break
			}
			return nil, dberr.Wrap(dberr.KindWalBootstrapFailed, err)
		}
		if err := reader.Next(); err != nil {
			if sstable.IsTruncated(err) {
				break
			}
			return nil, dberr.Wrap(dberr.KindWalBootstrapFailed, err)
		}
		entries = append(entries, value.Bytes)
	}

	if err := os.Remove(path); err != nil {
		return nil, dberr.Wrap(dberr.KindWalBootstrapFailed, err)
	}
	return entries, nil
}

// Exists reports whether a WAL file is present at dataDir, used at engine
// open to decide whether recovery must run before a fresh WAL can be
// created.
func Exists(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, FileName))
	return err == nil
}
