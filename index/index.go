// Package index implements the in-memory sparse index: an ordered map from
// sampled key to the (sstable path, byte offset) address of that entry's
// first record, populated by scanning SSTables with a sparse sampling rate.
package index

import (
	"github.com/sushrut141/dharmadb/dberr"
	"github.com/sushrut141/dharmadb/sstable"
)

// Address locates an entry's first record within an SSTable file.
type Address struct {
	Path   string
	Offset int64
}

type entry[K any] struct {
	key     K
	address Address
}

// Sparse is an ordered map K -> Address supporting upsert and floor lookup,
// held as a slice sorted by key and searched by binary search; it does not
// share the memtable's skip list.
type Sparse[K any] struct {
	less    func(a, b K) bool
	entries []entry[K] // kept sorted by key; sparse index entries are few enough that a sorted slice with binary search beats skip-list overhead
}

// New creates an empty Sparse index ordered by less.
func New[K any](less func(a, b K) bool) *Sparse[K] {
	return &Sparse[K]{less: less}
}

// Update upserts key -> address (delete-then-insert semantics).
func (s *Sparse[K]) Update(key K, address Address) {
	i := s.search(key)
	if i < len(s.entries) && s.equal(s.entries[i].key, key) {
		s.entries[i].address = address
		return
	}
	s.entries = append(s.entries, entry[K]{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry[K]{key: key, address: address}
}

// Floor returns the address of the greatest indexed key <= key, if any.
func (s *Sparse[K]) Floor(key K) (Address, bool) {
	i := s.search(key)
	if i < len(s.entries) && s.equal(s.entries[i].key, key) {
		return s.entries[i].address, true
	}
	// search returns the insertion point, i.e. the first entry > key;
	// the floor is the one just before it, if any.
	if i == 0 {
		return Address{}, false
	}
	return s.entries[i-1].address, true
}

// Reset empties the index, called before a full rebuild.
func (s *Sparse[K]) Reset() {
	s.entries = nil
}

func (s *Sparse[K]) equal(a, b K) bool {
	return !s.less(a, b) && !s.less(b, a)
}

// search returns the index of the first entry >= key (standard lower bound).
func (s *Sparse[K]) search(key K) int {
	lo, hi := 0, len(s.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.less(s.entries[mid].key, key) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// DecodeKeyFunc decodes the key half of an entry payload read from an
// SSTable; the index package doesn't know the entry encoding, so Build takes
// this as a callback rather than importing a codec directly.
type DecodeKeyFunc[K any] func(payload []byte) (K, error)

// Build scans every SSTable path with an sstable.Reader and samples every
// samplingRate-th entry (0-based, per SSTable) into idx, recording the
// reader-reported offset as that entry's address.
func Build[K any](idx *Sparse[K], tablePaths []string, blockSize, samplingRate int, decodeKey DecodeKeyFunc[K]) error {
	idx.Reset()
	for _, path := range tablePaths {
		if err := scanTable(idx, path, blockSize, samplingRate, decodeKey); err != nil {
			return err
		}
	}
	return nil
}

func scanTable[K any](idx *Sparse[K], path string, blockSize, samplingRate int, decodeKey DecodeKeyFunc[K]) error {
	reader, err := sstable.Open(path, blockSize)
	if err != nil {
		return dberr.Wrap(dberr.KindIndexInitFailed, err)
	}
	defer reader.Close()

	counter := 0
	for reader.HasNext() {
		value, err := reader.Read()
		if err != nil {
			return dberr.Wrap(dberr.KindIndexInitFailed, err)
		}
		if counter%samplingRate == 0 {
			key, err := decodeKey(value.Bytes)
			if err != nil {
				return dberr.Wrap(dberr.KindIndexInitFailed, err)
			}
			idx.Update(key, Address{Path: path, Offset: value.Offset})
		}
		counter++
		if err := reader.Next(); err != nil {
			return dberr.Wrap(dberr.KindIndexInitFailed, err)
		}
	}
	return nil
}
