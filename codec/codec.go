// Package codec provides the injected serialization boundary between user
// key/value types and the byte-oriented engine: a Codec turns a T into bytes
// and back, and a Comparator totally orders keys. Built-in codecs cover the
// common primitive types; user types bring their own.
package codec

import "encoding/binary"

// Codec encodes and decodes values of type T to and from bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

// Comparator totally orders values of type K.
type Comparator[K any] func(a, b K) bool

type codecFuncs[T any] struct {
	encode func(T) ([]byte, error)
	decode func([]byte) (T, error)
}

func (c codecFuncs[T]) Encode(v T) ([]byte, error) { return c.encode(v) }
func (c codecFuncs[T]) Decode(b []byte) (T, error) { return c.decode(b) }

// String is a length-implicit codec for Go strings: the byte slice is the
// string's UTF-8 bytes verbatim.
var String Codec[string] = codecFuncs[string]{
	encode: func(v string) ([]byte, error) { return []byte(v), nil },
	decode: func(b []byte) (string, error) { return string(b), nil },
}

// Bytes is the identity codec for []byte.
var Bytes Codec[[]byte] = codecFuncs[[]byte]{
	encode: func(v []byte) ([]byte, error) { return v, nil },
	decode: func(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil },
}

// Uint64 encodes a uint64 as 8 big-endian bytes, which also makes byte-wise
// comparison of the encoded form agree with numeric comparison.
var Uint64 Codec[uint64] = codecFuncs[uint64]{
	encode: func(v uint64) ([]byte, error) {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b, nil
	},
	decode: func(b []byte) (uint64, error) {
		return binary.BigEndian.Uint64(b), nil
	},
}

// Int64 encodes an int64 as 8 big-endian bytes after flipping the sign bit,
// so the encoded byte order matches signed numeric order.
var Int64 Codec[int64] = codecFuncs[int64]{
	encode: func(v int64) ([]byte, error) {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v)^(1<<63))
		return b, nil
	},
	decode: func(b []byte) (int64, error) {
		return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
	},
}

// StringLess orders strings lexically by byte value.
func StringLess(a, b string) bool { return a < b }

// Uint64Less orders uint64 numerically.
func Uint64Less(a, b uint64) bool { return a < b }

// Int64Less orders int64 numerically.
func Int64Less(a, b int64) bool { return a < b }

// BytesLess orders byte slices lexically, matching bytes.Compare < 0.
func BytesLess(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

