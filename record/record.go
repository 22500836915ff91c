// Package record implements the on-disk record and block framing shared by
// SSTables and the write-ahead log: a stream of serialized (key, value)
// payloads is packed into a sequence of fixed-size blocks, splitting any
// payload that doesn't fit into START/MIDDLE/END fragments.
package record

import "fmt"

// Kind identifies the fragment type of a record within a block.
type Kind byte

const (
	KindPadding  Kind = 0
	KindComplete Kind = 1
	KindStart    Kind = 2
	KindMiddle   Kind = 3
	KindEnd      Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindPadding:
		return "PADDING"
	case KindComplete:
		return "COMPLETE"
	case KindStart:
		return "START"
	case KindMiddle:
		return "MIDDLE"
	case KindEnd:
		return "END"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(k))
	}
}

// HeaderSize is the fixed size, in bytes, of a record header: one byte of
// kind followed by a big-endian u16 length.
const HeaderSize = 3

// MaxPayloadSize is the largest payload a single record fragment can carry,
// bounded by the u16 length field.
const MaxPayloadSize = 1<<16 - 1

// MinBlockSize is the smallest block size the configuration accepts.
const MinBlockSize = 16

// MaxBlockSize bounds block_size_in_bytes per the configuration contract.
const MaxBlockSize = MaxPayloadSize + HeaderSize

// putHeader writes a 3-byte record header (kind, length) into dst.
func putHeader(dst []byte, kind Kind, length int) {
	dst[0] = byte(kind)
	dst[1] = byte(length >> 8)
	dst[2] = byte(length)
}

// ReadHeader decodes the 3-byte record header at the start of src. A src
// shorter than HeaderSize is the raw zero fill at the end of a block and
// decodes as a zero-length PADDING record.
func ReadHeader(src []byte) (kind Kind, length int) {
	if len(src) < HeaderSize {
		return KindPadding, 0
	}
	return Kind(src[0]), int(src[1])<<8 | int(src[2])
}

// Packer packs a stream of whole-entry payloads into fixed-size blocks
// following the fragmentation algorithm in §4.1: a payload that fits in the
// current block's remaining space is written as a single COMPLETE record; a
// payload that doesn't fit is split across a START record, zero or more
// MIDDLE records, and a terminal END record, sealing a block every time one
// fills exactly.
type Packer struct {
	blockSize int
	current   []byte // len == blockSize, zero-filled; only current[:filled] has been written
	filled    int
}

// NewPacker creates a Packer that emits blocks of exactly blockSize bytes.
func NewPacker(blockSize int) *Packer {
	return &Packer{
		blockSize: blockSize,
		current:   make([]byte, blockSize),
	}
}

// Pending returns the bytes written into the in-progress block so far. The
// slice is owned by the Packer and is only valid until the next call to
// Append or Seal.
func (p *Packer) Pending() []byte {
	return p.current[:p.filled]
}

// Filled reports how many bytes of the in-progress block have been written.
func (p *Packer) Filled() int {
	return p.filled
}

func (p *Packer) resetBlock() []byte {
	sealed := p.current
	p.current = make([]byte, p.blockSize)
	p.filled = 0
	return sealed
}

// padRemaining pads out the remainder of the in-progress block (whatever
// amount of space is left) and seals it, returning the full block_size
// block. If a record header fits in the remaining space (>= HeaderSize), it
// is written as a PADDING record whose length is remaining-HeaderSize, so
// the declared length covers exactly the zero bytes filling out the rest of
// the block (a length of 0 when exactly HeaderSize bytes remain); if even
// the header doesn't fit, the remaining bytes are left as the raw zero fill
// already present in the buffer, which ReadHeader decodes as PADDING. Both
// branches always total exactly blockSize bytes, which is what callers rely
// on to preserve the block-size invariant.
func (p *Packer) padRemaining() []byte {
	remaining := p.blockSize - p.filled
	if remaining >= HeaderSize {
		putHeader(p.current[p.filled:], KindPadding, remaining-HeaderSize)
	}
	// else: < HeaderSize bytes left, raw zero fill (buffer already zeroed).
	p.filled = p.blockSize
	return p.resetBlock()
}

// Append packs payload into the block stream, returning every block that
// becomes sealed as a direct result (zero, one, or many full blockSize byte
// slices, in order). The Packer retains any leftover partial block between
// calls; callers needing durability per-append (the WAL) should also
// persist Pending() after every call.
func (p *Packer) Append(payload []byte) (sealed [][]byte) {
	remaining := payload
	first := true

	for first || len(remaining) > 0 {
		first = false
		avail := p.blockSize - p.filled

		// A header needs HeaderSize bytes to exist at all; leaving exactly
		// HeaderSize bytes would only fit a zero-payload fragment and make
		// no forward progress, so treat that as "no room" too and pad out
		// to a fresh block before writing anything for this entry.
		if avail <= HeaderSize {
			sealed = append(sealed, p.padRemaining())
			avail = p.blockSize
		}

		payloadRoom := avail - HeaderSize
		isFirstFragment := len(remaining) == len(payload)

		switch {
		case len(remaining) <= payloadRoom:
			kind := KindComplete
			if !isFirstFragment {
				kind = KindEnd
			}
			putHeader(p.current[p.filled:], kind, len(remaining))
			copy(p.current[p.filled+HeaderSize:], remaining)
			p.filled += HeaderSize + len(remaining)
			remaining = nil

			if p.filled == p.blockSize {
				sealed = append(sealed, p.resetBlock())
			}
		default:
			kind := KindStart
			if !isFirstFragment {
				kind = KindMiddle
			}
			putHeader(p.current[p.filled:], kind, payloadRoom)
			copy(p.current[p.filled+HeaderSize:], remaining[:payloadRoom])
			remaining = remaining[payloadRoom:]
			p.filled = p.blockSize
			sealed = append(sealed, p.resetBlock())
		}
	}

	return sealed
}

// Finish pads and seals any in-progress partial block. It returns ok=false
// if there is nothing pending (either because no entry was ever appended,
// or because the last entry sealed its block exactly), matching the "empty
// flush produces no file change" edge case.
func (p *Packer) Finish() (block []byte, ok bool) {
	if p.filled == 0 {
		return nil, false
	}
	return p.padRemaining(), true
}
