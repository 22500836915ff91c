// Package persistence ties the write-ahead log, memtable, SSTables, sparse
// index, and compaction together into the single logical writer per data
// directory, generalizing the teacher's rotate-on-size log segment manager
// into a rotate-on-threshold flush/compact state machine.
package persistence

import (
	"path/filepath"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/sushrut141/dharmadb/compaction"
	"github.com/sushrut141/dharmadb/config"
	"github.com/sushrut141/dharmadb/dberr"
	"github.com/sushrut141/dharmadb/index"
	"github.com/sushrut141/dharmadb/memtable"
	"github.com/sushrut141/dharmadb/sstable"
	"github.com/sushrut141/dharmadb/wal"
)

// Orchestrator is the single logical writer for a data directory: every
// mutating operation (Put, Delete, Flush, Compact) is serialized through mu;
// Get takes only a read lock so concurrent lookups don't block each other,
// per the engine's single-writer/many-reader concurrency model.
type Orchestrator[K, V any] struct {
	mu sync.RWMutex

	opts config.Options[K, V]
	log  *wal.WAL
	mem  *memtable.Memtable[K, V]
	idx  *index.Sparse[K]

	tableCount uint64
}

// Open creates a fresh Orchestrator at opts.DataDir, or recovers one from an
// unclean shutdown if a WAL is already present and opts.Bootstrap allows it.
func Open[K, V any](opts config.Options[K, V]) (*Orchestrator[K, V], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if wal.Exists(opts.DataDir) {
		if !opts.Bootstrap {
			return nil, dberr.New(dberr.KindPathDirty, opts.DataDir)
		}
		return Recover(opts)
	}
	return openFresh(opts)
}

func openFresh[K, V any](opts config.Options[K, V]) (*Orchestrator[K, V], error) {
	w, err := wal.Create(opts.DataDir, opts.BlockSizeInBytes)
	if err != nil {
		return nil, err
	}

	paths, err := sstable.ListTables(opts.DataDir)
	if err != nil {
		w.Cleanup()
		return nil, err
	}

	o := &Orchestrator[K, V]{
		opts:       opts,
		log:        w,
		mem:        newMemtable(opts),
		idx:        index.New[K](opts.Less),
		tableCount: nextTableNumber(paths),
	}
	if err := o.rebuildIndex(paths); err != nil {
		return nil, err
	}
	opts.Logger.Info().Str("data_dir", opts.DataDir).Int("table_count", len(paths)).Msg("engine opened")
	return o, nil
}

// Recover replays the WAL left behind by an unclean shutdown, opens a fresh
// engine against the now-clean directory, and re-applies every recovered
// entry in append order so it lands back in the new WAL and memtable.
func Recover[K, V any](opts config.Options[K, V]) (*Orchestrator[K, V], error) {
	entries, err := wal.Recover(opts.DataDir, opts.BlockSizeInBytes)
	if err != nil {
		return nil, err
	}

	o, err := openFresh(opts)
	if err != nil {
		return nil, err
	}

	for _, payload := range entries {
		key, value, err := decodeEntry(opts, payload)
		if err != nil {
			return nil, err
		}
		if err := o.putLocked(key, value); err != nil {
			return nil, err
		}
	}
	if len(entries) > 0 {
		opts.Logger.Warn().Int("recovered_entries", len(entries)).Msg("recovered entries from unclean shutdown")
	}
	return o, nil
}

func newMemtable[K, V any](opts config.Options[K, V]) *memtable.Memtable[K, V] {
	var zeroK K
	var zeroV V
	return memtable.New[K, V](opts.Less, int(unsafe.Sizeof(zeroK)), int(unsafe.Sizeof(zeroV)))
}

// nextTableNumber returns one past the highest table number already present,
// or 0 if the tables directory is empty.
func nextTableNumber(paths []string) uint64 {
	var max uint64
	found := false
	for _, p := range paths {
		name := filepath.Base(p)
		name = name[:len(name)-len(filepath.Ext(name))]
		n, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	if !found {
		return 0
	}
	return max + 1
}

func (o *Orchestrator[K, V]) isTombstone(v V) bool {
	return o.opts.ValueEqual(v, o.opts.Tombstone)
}

func (o *Orchestrator[K, V]) rebuildIndex(paths []string) error {
	return index.Build[K](o.idx, paths, o.opts.BlockSizeInBytes, o.opts.SparseIndexSamplingRate, decodeKey(o.opts))
}

// Put durably appends (key, value) to the WAL, then inserts it into the
// memtable. A WAL failure aborts before the memtable is touched. Flushes
// synchronously once the memtable crosses its byte threshold.
func (o *Orchestrator[K, V]) Put(key K, value V) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.putLocked(key, value)
}

func (o *Orchestrator[K, V]) putLocked(key K, value V) error {
	payload, err := encodeEntry(o.opts, key, value)
	if err != nil {
		return err
	}
	if err := o.log.Append(payload); err != nil {
		return err
	}
	o.mem.Insert(key, value)

	if o.mem.LenBytes() >= o.opts.MemtableSizeInBytes {
		return o.flushLocked()
	}
	return nil
}

// Delete is equivalent to Put(key, tombstone).
func (o *Orchestrator[K, V]) Delete(key K) error {
	return o.Put(key, o.opts.Tombstone)
}

// Get consults the memtable first, then falls back to a sparse-index floor
// lookup and an SSTable scan. Tombstones are surfaced as "not found" rather
// than as a value.
func (o *Orchestrator[K, V]) Get(key K) (V, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var zero V
	if v, ok := o.mem.Get(key); ok {
		if o.isTombstone(v) {
			return zero, false, nil
		}
		return v, true, nil
	}

	addr, ok := o.idx.Floor(key)
	if !ok {
		return zero, false, nil
	}

	reader, err := sstable.Open(addr.Path, o.opts.BlockSizeInBytes)
	if err != nil {
		return zero, false, dberr.Wrap(dberr.KindSSTableReadFailed, err)
	}
	defer reader.Close()

	if err := reader.Seek(addr.Offset); err != nil {
		return zero, false, err
	}

	for reader.HasNext() {
		value, err := reader.Read()
		if err != nil {
			return zero, false, dberr.Wrap(dberr.KindSSTableReadFailed, err)
		}
		k, v, err := decodeEntry(o.opts, value.Bytes)
		if err != nil {
			return zero, false, err
		}
		if o.opts.Less(key, k) {
			return zero, false, nil
		}
		if !o.opts.Less(k, key) {
			if o.isTombstone(v) {
				return zero, false, nil
			}
			return v, true, nil
		}
		if err := reader.Next(); err != nil {
			return zero, false, dberr.Wrap(dberr.KindSSTableReadFailed, err)
		}
	}
	return zero, false, nil
}

// Flush writes the current memtable out as a new SSTable, resets the WAL,
// rebuilds the sparse index, and runs compaction if the SSTable count has
// reached the configured threshold. A no-op if the memtable is empty.
func (o *Orchestrator[K, V]) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushLocked()
}

func (o *Orchestrator[K, V]) flushLocked() error {
	records := o.mem.Collect()
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	payloads := make([][]byte, len(records))
	bytesWritten := 0
	for i, r := range records {
		payload, err := encodeEntry(o.opts, r.Key, r.Value)
		if err != nil {
			return err
		}
		payloads[i] = payload
		bytesWritten += len(payload)
	}

	tableNumber := o.tableCount
	if _, err := sstable.Write(o.opts.DataDir, o.opts.BlockSizeInBytes, tableNumber, payloads); err != nil {
		return err
	}
	o.tableCount++

	newWAL, err := o.log.Reset()
	if err != nil {
		return err
	}
	o.log = newWAL
	o.mem = newMemtable(o.opts)

	paths, err := sstable.ListTables(o.opts.DataDir)
	if err != nil {
		return dberr.Wrap(dberr.KindIndexUpdateFailed, err)
	}
	if err := o.rebuildIndex(paths); err != nil {
		return err
	}

	o.opts.Logger.Info().
		Int64("table_number", int64(tableNumber)).
		Int("entry_count", len(records)).
		Int("bytes", bytesWritten).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("flush complete")

	if o.tableCount >= uint64(o.opts.CompactionThreshold) {
		return o.compactLocked()
	}
	return nil
}

// Compact runs basic compaction now rather than waiting for the next flush;
// a no-op if fewer than CompactionThreshold SSTables exist.
func (o *Orchestrator[K, V]) Compact() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.compactLocked()
}

func (o *Orchestrator[K, V]) compactLocked() error {
	decode := func(payload []byte) (K, V, error) { return decodeEntry(o.opts, payload) }
	encode := func(key K, value V) ([]byte, error) { return encodeEntry(o.opts, key, value) }

	start := time.Now()
	ran, err := compaction.Compact[K, V](
		o.opts.DataDir,
		o.opts.BlockSizeInBytes,
		o.opts.CompactionThreshold,
		o.opts.Less,
		o.isTombstone,
		decode,
		encode,
	)
	if err != nil {
		o.opts.Logger.Error().Err(err).Msg("compaction failed")
		return err
	}
	if !ran {
		return nil
	}

	o.tableCount = 1
	paths, err := sstable.ListTables(o.opts.DataDir)
	if err != nil {
		return dberr.Wrap(dberr.KindIndexUpdateFailed, err)
	}
	if err := o.rebuildIndex(paths); err != nil {
		return err
	}

	o.opts.Logger.Info().
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int("table_count", len(paths)).
		Msg("compaction complete")
	return nil
}

// Close flushes any remaining memtable entries, then deletes the (now
// empty) WAL, matching the clean-shutdown state transition WAL -> Absent.
func (o *Orchestrator[K, V]) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mem.Len() > 0 {
		if err := o.flushLocked(); err != nil {
			return err
		}
	}
	return o.log.Cleanup()
}
