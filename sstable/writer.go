// Package sstable implements the immutable, block-structured on-disk sorted
// run: a Writer packs a key-sorted stream of pre-encoded entries into
// fixed-size blocks, and a Reader streams them back out, reassembling any
// entry that was fragmented across blocks and supporting seek-to-byte-offset
// for sparse-index lookups.
package sstable

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sushrut141/dharmadb/dberr"
	"github.com/sushrut141/dharmadb/record"
)

const tablesDirName = "tables"
const tableExt = ".db"

// TablesDir returns the directory under dataDir that holds SSTable files.
func TablesDir(dataDir string) string {
	return filepath.Join(dataDir, tablesDirName)
}

// TablePath returns the canonical path for the SSTable numbered tableNumber.
// The number is zero-padded so that lexical filename order always matches
// numeric table-number order, per the "lexical order must correspond to
// write order" requirement compaction relies on.
func TablePath(dataDir string, tableNumber uint64) string {
	return filepath.Join(TablesDir(dataDir), fmt.Sprintf("%010d%s", tableNumber, tableExt))
}

// Writer packs a sequence of pre-encoded entries into an SSTable file, one
// block at a time, so compaction can stream output without holding the
// merged result in memory.
type Writer struct {
	file   *os.File
	packer *record.Packer
}

// Create opens (or truncates) path and returns a Writer that packs blocks of
// blockSize bytes into it.
func Create(path string, blockSize int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, dberr.Wrap(dberr.KindSSTableCreateFailed, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindSSTableCreateFailed, err)
	}
	return &Writer{file: f, packer: record.NewPacker(blockSize)}, nil
}

// Append packs payload (an encoded (K,V) entry) into the block stream,
// writing out any block that becomes sealed as a result.
func (w *Writer) Append(payload []byte) error {
	for _, block := range w.packer.Append(payload) {
		if _, err := w.file.Write(block); err != nil {
			return dberr.Wrap(dberr.KindSSTableCreateFailed, err)
		}
	}
	return nil
}

// Close pads and writes out the final partial block, if any, then closes
// the underlying file. The caller is responsible for removing the file at
// path on error, per the "partial files on failure are permitted" contract.
func (w *Writer) Close() error {
	if block, ok := w.packer.Finish(); ok {
		if _, err := w.file.Write(block); err != nil {
			w.file.Close()
			return dberr.Wrap(dberr.KindSSTableCreateFailed, err)
		}
	}
	if err := w.file.Close(); err != nil {
		return dberr.Wrap(dberr.KindSSTableCreateFailed, err)
	}
	return nil
}

// WriteAt packs entries into a new SSTable at an arbitrary path in one call;
// Write uses it for numbered tables. Compaction streams its output through
// Create/Append/Close instead.
func WriteAt(path string, blockSize int, entries [][]byte) (err error) {
	w, err := Create(path, blockSize)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	for _, entry := range entries {
		if err = w.Append(entry); err != nil {
			return err
		}
	}
	return nil
}

// Write packs entries (already sorted by key) into a new SSTable named
// tableNumber under {dataDir}/tables and returns its path.
func Write(dataDir string, blockSize int, tableNumber uint64, entries [][]byte) (string, error) {
	path := TablePath(dataDir, tableNumber)
	if err := WriteAt(path, blockSize, entries); err != nil {
		return "", err
	}
	return path, nil
}

// ListTables returns the lexically sorted paths of every SSTable file under
// {dataDir}/tables. Lexical order matches numeric write order because table
// numbers are zero-padded (see TablePath).
func ListTables(dataDir string) ([]string, error) {
	dir := TablesDir(dataDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dberr.Wrap(dberr.KindSSTableReadFailed, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != tableExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
