package sstable

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sushrut141/dharmadb/dberr"
)

func writeTestTable(t *testing.T, path string, blockSize int, entries [][]byte) {
	t.Helper()
	if err := WriteAt(path, blockSize, entries); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
}

func TestWriterReader_RoundTripSmallEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.db")
	entries := [][]byte{
		[]byte("aaa:1"),
		[]byte("bbb:2"),
		[]byte("ccc:3"),
	}
	writeTestTable(t, path, 64, entries)

	r, err := Open(path, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var got [][]byte
	for r.HasNext() {
		v, err := r.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, v.Bytes)
		if err := r.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if !bytes.Equal(got[i], entries[i]) {
			t.Fatalf("entry %d: got %q, want %q", i, got[i], entries[i])
		}
	}
}

func TestWriterReader_LargeEntrySpanningBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.db")
	big := bytes.Repeat([]byte("z"), 500)
	entries := [][]byte{[]byte("small"), big, []byte("tail")}
	writeTestTable(t, path, 32, entries)

	r, err := Open(path, 32)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var got [][]byte
	for r.HasNext() {
		v, err := r.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, v.Bytes)
		if err := r.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if !bytes.Equal(got[1], big) {
		t.Fatalf("large entry mismatch: got %d bytes, want %d", len(got[1]), len(big))
	}
}

func TestReader_ReadDoesNotAdvance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.db")
	writeTestTable(t, path, 64, [][]byte{[]byte("one"), []byte("two")})

	r, err := Open(path, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	first, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	again, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(first.Bytes, again.Bytes) || first.Offset != again.Offset {
		t.Fatalf("repeated Read without Next must be idempotent: %v != %v", first, again)
	}
}

func TestReader_SeekToEntryOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.db")
	entries := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cccc")}
	writeTestTable(t, path, 64, entries)

	r, err := Open(path, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var offsets []int64
	for r.HasNext() {
		v, _ := r.Read()
		offsets = append(offsets, v.Offset)
		r.Next()
	}

	if err := r.Seek(offsets[2]); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	v, err := r.Read()
	if err != nil {
		t.Fatalf("Read after Seek: %v", err)
	}
	if !bytes.Equal(v.Bytes, entries[2]) {
		t.Fatalf("Seek landed on wrong entry: got %q, want %q", v.Bytes, entries[2])
	}
}

func TestReader_SeekPastEndOfFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.db")
	writeTestTable(t, path, 64, [][]byte{[]byte("only")})

	r, err := Open(path, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	err = r.Seek(1 << 20)
	if !dberr.Is(err, dberr.KindSSTableInvalidOffset) {
		t.Fatalf("expected KindSSTableInvalidOffset, got %v", err)
	}
}

func TestListTables_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	tablesDir := TablesDir(dir)
	writeTestTable(t, filepath.Join(tablesDir, "2.db"), 64, [][]byte{[]byte("a")})
	writeTestTable(t, filepath.Join(tablesDir, "10.db"), 64, [][]byte{[]byte("b")})
	writeTestTable(t, filepath.Join(tablesDir, "1.db"), 64, [][]byte{[]byte("c")})
	writeTestTable(t, filepath.Join(tablesDir, "notes.txt"), 64, [][]byte{[]byte("d")})

	paths, err := ListTables(dir)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(paths))
	}
	// lexical sort: "1.db" < "10.db" < "2.db"
	want := []string{
		filepath.Join(tablesDir, "1.db"),
		filepath.Join(tablesDir, "10.db"),
		filepath.Join(tablesDir, "2.db"),
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestListTables_MissingDirectoryReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	paths, err := ListTables(dir)
	if err != nil {
		t.Fatalf("ListTables on missing dir: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected no tables, got %d", len(paths))
	}
}
