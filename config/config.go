// Package config carries the engine's configuration surface as a
// functional-options struct, following the same pattern the teacher repo
// uses for its segment manager.
package config

import (
	"errors"

	"github.com/sushrut141/dharmadb/codec"
	"github.com/sushrut141/dharmadb/record"
)

var (
	errMissingCodec        = errors.New("config: key/value codecs and comparator must be set via WithCodecs, and the tombstone equality function via WithTombstone")
	errBlockSizeOutOfRange = errors.New("config: block size out of range")
	errInvalidSamplingRate = errors.New("config: sparse index sampling rate must be >= 1")
)

const (
	defaultBlockSizeInBytes        = 32768
	defaultBlocksPerSSTable        = 32 * 32
	defaultSparseIndexSamplingRate = 100
	defaultCompactionThreshold     = 4
	// defaultMemtableSizeInBytes is chosen for real use, not the tiny
	// placeholder value original_source's default carries for its own
	// tests; spec.md leaves the default unspecified beyond "a flush
	// threshold".
	defaultMemtableSizeInBytes = 4 * 1024 * 1024
)

// Logger is the structured logging surface the orchestrator writes
// lifecycle events to. Implemented over a *phuslulog.Logger by the adapter
// in the persistence package (persistence.NewLogger); kept as an interface
// here so config has no logging dependency of its own.
type Logger interface {
	Info() Event
	Warn() Event
	Error() Event
}

// Event is a single structured log entry under construction.
type Event interface {
	Str(key, val string) Event
	Int(key string, val int) Event
	Int64(key string, val int64) Event
	Err(err error) Event
	Msg(msg string)
}

type noopLogger struct{}
type noopEvent struct{}

func (noopLogger) Info() Event  { return noopEvent{} }
func (noopLogger) Warn() Event  { return noopEvent{} }
func (noopLogger) Error() Event { return noopEvent{} }

func (noopEvent) Str(string, string) Event  { return noopEvent{} }
func (noopEvent) Int(string, int) Event     { return noopEvent{} }
func (noopEvent) Int64(string, int64) Event { return noopEvent{} }
func (noopEvent) Err(error) Event           { return noopEvent{} }
func (noopEvent) Msg(string)                {}

// Options carries every engine configuration knob, generic over the user's
// key and value types.
type Options[K, V any] struct {
	DataDir                 string
	Bootstrap               bool
	MemtableSizeInBytes     int
	BlockSizeInBytes        int
	BlocksPerSSTable        int
	SparseIndexSamplingRate int
	CompactionThreshold     int

	Logger     Logger
	KeyCodec   codec.Codec[K]
	ValCodec   codec.Codec[V]
	Less       func(a, b K) bool
	Tombstone  V
	ValueEqual func(a, b V) bool
}

// Option mutates an Options[K, V] under construction.
type Option[K, V any] func(*Options[K, V])

// WithBootstrap sets whether to honor existing on-disk state at open.
func WithBootstrap[K, V any](bootstrap bool) Option[K, V] {
	return func(o *Options[K, V]) { o.Bootstrap = bootstrap }
}

// WithMemtableSizeInBytes sets the flush threshold.
func WithMemtableSizeInBytes[K, V any](n int) Option[K, V] {
	return func(o *Options[K, V]) { o.MemtableSizeInBytes = n }
}

// WithBlockSizeInBytes sets the on-disk block size; must be >= 16 and <=
// 65535+3 per the record format's length field.
func WithBlockSizeInBytes[K, V any](n int) Option[K, V] {
	return func(o *Options[K, V]) { o.BlockSizeInBytes = n }
}

// WithBlocksPerSSTable sets the advisory blocks-per-table hint.
func WithBlocksPerSSTable[K, V any](n int) Option[K, V] {
	return func(o *Options[K, V]) { o.BlocksPerSSTable = n }
}

// WithSparseIndexSamplingRate sets how often an entry is sampled into the
// sparse index; 1 means every entry.
func WithSparseIndexSamplingRate[K, V any](n int) Option[K, V] {
	return func(o *Options[K, V]) { o.SparseIndexSamplingRate = n }
}

// WithCompactionThreshold sets the SSTable count that triggers compaction.
func WithCompactionThreshold[K, V any](n int) Option[K, V] {
	return func(o *Options[K, V]) { o.CompactionThreshold = n }
}

// WithLogger sets the structured logger lifecycle events are written to.
func WithLogger[K, V any](l Logger) Option[K, V] {
	return func(o *Options[K, V]) { o.Logger = l }
}

// WithCodecs sets the key and value codecs and the key comparator.
func WithCodecs[K, V any](keyCodec codec.Codec[K], valCodec codec.Codec[V], less func(a, b K) bool) Option[K, V] {
	return func(o *Options[K, V]) {
		o.KeyCodec = keyCodec
		o.ValCodec = valCodec
		o.Less = less
	}
}

// WithTombstone sets the sentinel value representing a logical delete and
// the equality function used to recognize it (V need not be `comparable`).
func WithTombstone[K, V any](tombstone V, equal func(a, b V) bool) Option[K, V] {
	return func(o *Options[K, V]) {
		o.Tombstone = tombstone
		o.ValueEqual = equal
	}
}

// New builds Options for dataDir with defaults applied, then each opt in
// order. Callers must supply codecs and a comparator via WithCodecs before
// the engine can be opened; New itself does not validate this since a
// generic zero-value codec has no sensible default.
func New[K, V any](dataDir string, opts ...Option[K, V]) Options[K, V] {
	o := Options[K, V]{
		DataDir:                 dataDir,
		Bootstrap:               true,
		MemtableSizeInBytes:     defaultMemtableSizeInBytes,
		BlockSizeInBytes:        defaultBlockSizeInBytes,
		BlocksPerSSTable:        defaultBlocksPerSSTable,
		SparseIndexSamplingRate: defaultSparseIndexSamplingRate,
		CompactionThreshold:     defaultCompactionThreshold,
		Logger:                  noopLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Validate checks invariants New cannot enforce on its own (codec presence,
// block size bounds).
func (o Options[K, V]) Validate() error {
	if o.KeyCodec == nil || o.ValCodec == nil || o.Less == nil || o.ValueEqual == nil {
		return errMissingCodec
	}
	if o.BlockSizeInBytes < record.MinBlockSize || o.BlockSizeInBytes > record.MaxBlockSize {
		return errBlockSizeOutOfRange
	}
	if o.SparseIndexSamplingRate < 1 {
		return errInvalidSamplingRate
	}
	return nil
}
