// Package dharmadb is the thin, out-of-core facade over the storage
// engine: a generic sorted map backed by persistence.Orchestrator,
// translating tombstone hits to "not found" the way a key-value client
// library would.
package dharmadb

import (
	"github.com/sushrut141/dharmadb/config"
	"github.com/sushrut141/dharmadb/persistence"
)

// DB is a generic, embeddable ordered key-value store.
type DB[K, V any] struct {
	orchestrator *persistence.Orchestrator[K, V]
}

// Open creates or recovers a DB rooted at dataDir, applying opts over the
// package defaults. Callers must supply key/value codecs, a comparator, and
// a tombstone via config.WithCodecs / config.WithTombstone.
func Open[K, V any](dataDir string, opts ...config.Option[K, V]) (*DB[K, V], error) {
	o, err := persistence.Open[K, V](config.New(dataDir, opts...))
	if err != nil {
		return nil, err
	}
	return &DB[K, V]{orchestrator: o}, nil
}

// Put associates value with key, durably.
func (db *DB[K, V]) Put(key K, value V) error {
	return db.orchestrator.Put(key, value)
}

// Get returns the value associated with key, if present and not deleted.
func (db *DB[K, V]) Get(key K) (V, bool, error) {
	return db.orchestrator.Get(key)
}

// Delete removes key, if present.
func (db *DB[K, V]) Delete(key K) error {
	return db.orchestrator.Delete(key)
}

// Flush writes the current memtable out as a new SSTable immediately,
// rather than waiting for it to cross its byte threshold.
func (db *DB[K, V]) Flush() error {
	return db.orchestrator.Flush()
}

// Compact runs basic compaction immediately, rather than waiting for the
// next flush to trigger it.
func (db *DB[K, V]) Compact() error {
	return db.orchestrator.Compact()
}

// Close flushes any unflushed writes and cleans up the WAL.
func (db *DB[K, V]) Close() error {
	return db.orchestrator.Close()
}
