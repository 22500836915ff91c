// Package dberr defines the closed taxonomy of error kinds the engine can
// return, so callers can switch on "what kind of failure" rather than match
// against ad-hoc sentinel values per package.
package dberr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a failure. The set is closed: every
// failure path in the engine maps to exactly one of these.
type Kind int

const (
	_ Kind = iota
	KindPathDirty
	KindWalLogCreationFailed
	KindWalWriteFailed
	KindWalBootstrapFailed
	KindWalCleanupFailed
	KindSSTableCreateFailed
	KindSSTableReadFailed
	KindSSTableInvalidOffset
	KindIndexInitFailed
	KindIndexUpdateFailed
	KindRecordSerializeFailed
	KindRecordDeserializeFailed
	KindCompactionInputInvalid
	KindCompactionOutputInvalid
	KindCompactionCleanupFailed
	KindDbNoSuchKey
)

func (k Kind) String() string {
	switch k {
	case KindPathDirty:
		return "PATH_DIRTY"
	case KindWalLogCreationFailed:
		return "WAL_LOG_CREATION_FAILED"
	case KindWalWriteFailed:
		return "WAL_WRITE_FAILED"
	case KindWalBootstrapFailed:
		return "WAL_BOOTSTRAP_FAILED"
	case KindWalCleanupFailed:
		return "WAL_CLEANUP_FAILED"
	case KindSSTableCreateFailed:
		return "SSTABLE_CREATE_FAILED"
	case KindSSTableReadFailed:
		return "SSTABLE_READ_FAILED"
	case KindSSTableInvalidOffset:
		return "SSTABLE_INVALID_OFFSET"
	case KindIndexInitFailed:
		return "INDEX_INIT_FAILED"
	case KindIndexUpdateFailed:
		return "INDEX_UPDATE_FAILED"
	case KindRecordSerializeFailed:
		return "RECORD_SERIALIZE_FAILED"
	case KindRecordDeserializeFailed:
		return "RECORD_DESERIALIZE_FAILED"
	case KindCompactionInputInvalid:
		return "COMPACTION_INPUT_INVALID"
	case KindCompactionOutputInvalid:
		return "COMPACTION_OUTPUT_INVALID"
	case KindCompactionCleanupFailed:
		return "COMPACTION_CLEANUP_FAILED"
	case KindDbNoSuchKey:
		return "DB_NO_SUCH_KEY"
	default:
		return fmt.Sprintf("UNKNOWN_KIND(%d)", int(k))
	}
}

// Error is the concrete error type every engine package returns. Compare
// against a Kind with errors.Is(err, dberr.Kind(...)) — Kind itself
// implements error so a bare Kind value works as the target.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is lets errors.Is(err, SomeKind) match any *Error carrying that Kind.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Error lets a bare Kind value itself be used as an errors.Is target, e.g.
// errors.Is(err, dberr.KindDbNoSuchKey).
func (k Kind) Error() string {
	return k.String()
}

// New creates an Error of the given kind with a message and no wrapped
// cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, err: cause}
}

// Is reports whether err (or anything it wraps) is a dberr.Error of kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
