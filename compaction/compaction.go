// Package compaction implements single-level "basic" compaction: a k-way
// merge of every SSTable in a data directory into one output run, keeping
// the newest value per key and dropping tombstoned keys.
package compaction

import (
	"container/heap"
	"os"
	"path/filepath"

	"github.com/sushrut141/dharmadb/dberr"
	"github.com/sushrut141/dharmadb/sstable"
)

const outputFileName = "compaction.db"

// DecodeFunc decodes a raw entry payload into its key and value.
type DecodeFunc[K, V any] func(payload []byte) (K, V, error)

// EncodeFunc re-encodes a (key, value) pair into an entry payload.
type EncodeFunc[K, V any] func(key K, value V) ([]byte, error)

type heapItem[K, V any] struct {
	key         K
	value       V
	readerIndex int
}

type mergeHeap[K, V any] struct {
	items []heapItem[K, V]
	less  func(a, b K) bool
}

func (h *mergeHeap[K, V]) Len() int { return len(h.items) }

func (h *mergeHeap[K, V]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.key, b.key) {
		return true
	}
	if h.less(b.key, a.key) {
		return false
	}
	return a.readerIndex < b.readerIndex
}

func (h *mergeHeap[K, V]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap[K, V]) Push(x any) { h.items = append(h.items, x.(heapItem[K, V])) }

func (h *mergeHeap[K, V]) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	return item
}

// Compact runs the k-way merge if the number of SSTables under
// {dataDir}/tables is >= threshold, and swaps the merged result in as
// {dataDir}/tables/0.db. It reports ran=false (not an error) if fewer than
// threshold tables exist.
func Compact[K, V any](
	dataDir string,
	blockSize, threshold int,
	less func(a, b K) bool,
	isTombstone func(V) bool,
	decode DecodeFunc[K, V],
	encode EncodeFunc[K, V],
) (ran bool, err error) {
	paths, err := sstable.ListTables(dataDir)
	if err != nil {
		return false, err
	}
	if len(paths) < threshold {
		return false, nil
	}

	readers := make([]*sstable.Reader, len(paths))
	for i, p := range paths {
		r, err := sstable.Open(p, blockSize)
		if err != nil {
			closeAll(readers)
			return false, dberr.Wrap(dberr.KindCompactionInputInvalid, err)
		}
		readers[i] = r
	}
	defer closeAll(readers)

	outputPath := filepath.Join(dataDir, "compaction", outputFileName)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return false, dberr.Wrap(dberr.KindCompactionOutputInvalid, err)
	}
	writer, err := sstable.Create(outputPath, blockSize)
	if err != nil {
		return false, dberr.Wrap(dberr.KindCompactionOutputInvalid, err)
	}

	if err := merge(readers, writer, less, isTombstone, decode, encode); err != nil {
		writer.Close()
		os.Remove(outputPath)
		return false, err
	}
	if err := writer.Close(); err != nil {
		os.Remove(outputPath)
		return false, dberr.Wrap(dberr.KindCompactionOutputInvalid, err)
	}

	if err := swapIn(dataDir, outputPath); err != nil {
		return false, err
	}
	return true, nil
}

func closeAll(readers []*sstable.Reader) {
	for _, r := range readers {
		if r != nil {
			r.Close()
		}
	}
}

func merge[K, V any](
	readers []*sstable.Reader,
	writer *sstable.Writer,
	less func(a, b K) bool,
	isTombstone func(V) bool,
	decode DecodeFunc[K, V],
	encode EncodeFunc[K, V],
) error {
	h := &mergeHeap[K, V]{less: less}
	heap.Init(h)

	push := func(i int) error {
		if !readers[i].HasNext() {
			return nil
		}
		value, err := readers[i].Read()
		if err != nil {
			return dberr.Wrap(dberr.KindCompactionInputInvalid, err)
		}
		if err := readers[i].Next(); err != nil {
			return dberr.Wrap(dberr.KindCompactionInputInvalid, err)
		}
		key, val, err := decode(value.Bytes)
		if err != nil {
			return dberr.Wrap(dberr.KindCompactionInputInvalid, err)
		}
		heap.Push(h, heapItem[K, V]{key: key, value: val, readerIndex: i})
		return nil
	}

	for i := range readers {
		if err := push(i); err != nil {
			return err
		}
	}

	// The merge never needs to rewrite bytes already handed to the writer:
	// duplicates of a key are always adjacent pops (the heap is ordered by
	// key first), so "overwrite the last output" is realized by holding the
	// most recent pop for a key in memory and only committing it to the
	// writer once a strictly greater key is popped (or the heap drains).
	// This keeps sstable.Writer a pure append-only stream.
	var (
		pending      bool
		pendingKey   K
		pendingValue V
	)

	commitPending := func() error {
		if !pending {
			return nil
		}
		pending = false
		if isTombstone(pendingValue) {
			return nil
		}
		payload, err := encode(pendingKey, pendingValue)
		if err != nil {
			return dberr.Wrap(dberr.KindCompactionInputInvalid, err)
		}
		if err := writer.Append(payload); err != nil {
			return dberr.Wrap(dberr.KindCompactionOutputInvalid, err)
		}
		return nil
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(heapItem[K, V])

		if pending && !less(item.key, pendingKey) && !less(pendingKey, item.key) {
			// Same key as the still-buffered output: this pop came from a
			// higher reader_index (pushed after the buffered one), so it's
			// newer and overwrites it.
			pendingValue = item.value
		} else {
			if err := commitPending(); err != nil {
				return err
			}
			pending = true
			pendingKey = item.key
			pendingValue = item.value
		}

		if err := push(item.readerIndex); err != nil {
			return err
		}
	}

	return commitPending()
}

func swapIn(dataDir, outputPath string) error {
	tablesDir := sstable.TablesDir(dataDir)
	existing, err := os.ReadDir(tablesDir)
	if err != nil && !os.IsNotExist(err) {
		return dberr.Wrap(dberr.KindCompactionCleanupFailed, err)
	}
	for _, e := range existing {
		if err := os.Remove(filepath.Join(tablesDir, e.Name())); err != nil {
			return dberr.Wrap(dberr.KindCompactionCleanupFailed, err)
		}
	}
	if err := os.MkdirAll(tablesDir, 0o755); err != nil {
		return dberr.Wrap(dberr.KindCompactionCleanupFailed, err)
	}
	finalPath := sstable.TablePath(dataDir, 0)
	if err := os.Rename(outputPath, finalPath); err != nil {
		return dberr.Wrap(dberr.KindCompactionCleanupFailed, err)
	}
	return nil
}
