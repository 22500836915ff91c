package sstable

import (
	"errors"
	"io"
	"os"

	"github.com/sushrut141/dharmadb/dberr"
	"github.com/sushrut141/dharmadb/record"
)

// errTruncated signals that a record's declared span runs past the real
// on-disk file length — the remainder was zero-fill manufactured by a short
// ReadAt, not data actually written. Only possible against a file that isn't
// block-aligned (a WAL, mid-append); a well-formed SSTable never produces
// this. Check with IsTruncated.
var errTruncated = errors.New("sstable: record extends past end of file")

// IsTruncated reports whether err indicates a record whose fragments ran
// past the real file length, i.e. a partially-written trailing entry.
func IsTruncated(err error) bool {
	return errors.Is(err, errTruncated)
}

// Value is an entry read from an SSTable: the reassembled payload bytes and
// the absolute byte offset of the first byte of its first record's header.
type Value struct {
	Bytes  []byte
	Offset int64
}

// Reader streams entries out of an SSTable (or a WAL file, which shares the
// same block format) in on-disk order. Read inspects the entry at the
// current cursor without advancing it; Next advances past it. This split
// lets a caller peek an entry, decide it has overshot its target key, and
// still leave the cursor at a well-defined position.
type Reader struct {
	file        *os.File
	blockSize   int
	fileSize    int64
	blockOffset int64 // absolute offset of the first byte of the buffered block
	buffer      []byte
	cursor      int // offset within buffer, i.e. within the current block
}

// Open opens path and buffers its first block.
func Open(path string, blockSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindSSTableReadFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberr.Wrap(dberr.KindSSTableReadFailed, err)
	}
	r := &Reader{
		file:      f,
		blockSize: blockSize,
		fileSize:  info.Size(),
	}
	if err := r.loadBlockAt(0); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Size returns the total byte length of the underlying file.
func (r *Reader) Size() int64 {
	return r.fileSize
}

func (r *Reader) loadBlockAt(offset int64) error {
	buf := make([]byte, r.blockSize)
	n, err := r.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return dberr.Wrap(dberr.KindSSTableReadFailed, err)
	}
	// A short read (n < blockSize) happens for the partial trailing block of
	// a file that isn't block-aligned (a WAL) and for any offset past
	// file_size. buf stays zero-filled beyond n, so the unwritten part
	// decodes as PADDING, and the file_size checks in HasNext, Read and Next
	// keep it from being read as data.
	_ = n
	r.blockOffset = offset
	r.buffer = buf
	r.cursor = 0
	return nil
}

func (r *Reader) loadNextBlock() error {
	return r.loadBlockAt(r.blockOffset + int64(r.blockSize))
}

func (r *Reader) currentKind() record.Kind {
	kind, _ := record.ReadHeader(r.buffer[r.cursor:])
	return kind
}

// spanExceedsFile reports whether a fragment's header-plus-payload, starting
// at the current cursor, claims bytes beyond the real file length — meaning
// part of what it claims is zero-fill manufactured by a short ReadAt rather
// than data actually on disk.
func (r *Reader) spanExceedsFile(length int) bool {
	end := r.blockOffset + int64(r.cursor) + int64(record.HeaderSize) + int64(length)
	return end > r.fileSize
}

// HasNext reports whether another entry remains to be read.
func (r *Reader) HasNext() bool {
	if r.blockOffset >= r.fileSize {
		return false
	}
	if r.currentKind() == record.KindPadding {
		return r.blockOffset+int64(r.blockSize) < r.fileSize
	}
	return true
}

// Read returns the entry at the current cursor without advancing it.
func (r *Reader) Read() (Value, error) {
	savedBlockOffset := r.blockOffset
	savedCursor := r.cursor
	savedBuffer := r.buffer

	restore := func() {
		r.blockOffset = savedBlockOffset
		r.cursor = savedCursor
		r.buffer = savedBuffer
	}

	var scratch []byte
	offset := int64(-1) // set once, at the first non-PADDING record seen

	for {
		if r.blockOffset >= r.fileSize {
			restore()
			return Value{}, errTruncated
		}
		kind, length := record.ReadHeader(r.buffer[r.cursor:])
		if offset < 0 && kind != record.KindPadding {
			offset = r.blockOffset + int64(r.cursor)
		}
		if kind != record.KindPadding && r.spanExceedsFile(length) {
			restore()
			return Value{}, errTruncated
		}
		switch kind {
		case record.KindPadding:
			if err := r.loadNextBlock(); err != nil {
				restore()
				return Value{}, err
			}
		case record.KindComplete:
			start := r.cursor + record.HeaderSize
			data := append([]byte(nil), r.buffer[start:start+length]...)
			restore()
			return Value{Bytes: data, Offset: offset}, nil
		case record.KindStart, record.KindMiddle:
			start := r.cursor + record.HeaderSize
			scratch = append(scratch, r.buffer[start:start+length]...)
			if err := r.loadNextBlock(); err != nil {
				restore()
				return Value{}, err
			}
		case record.KindEnd:
			start := r.cursor + record.HeaderSize
			scratch = append(scratch, r.buffer[start:start+length]...)
			restore()
			return Value{Bytes: scratch, Offset: offset}, nil
		default:
			restore()
			return Value{}, dberr.New(dberr.KindRecordDeserializeFailed, "unrecognized record kind")
		}
	}
}

// Next advances the cursor past the current entry. Must only be called when
// HasNext reports true.
func (r *Reader) Next() error {
	for {
		if r.blockOffset >= r.fileSize {
			return errTruncated
		}
		kind, length := record.ReadHeader(r.buffer[r.cursor:])
		if kind != record.KindPadding && r.spanExceedsFile(length) {
			return errTruncated
		}
		switch kind {
		case record.KindPadding:
			// Read skips padding to the entry that starts the next block,
			// so Next moves past that entry as well.
			if err := r.loadNextBlock(); err != nil {
				return err
			}
		case record.KindComplete, record.KindEnd:
			r.cursor += record.HeaderSize + length
			if r.cursor == r.blockSize {
				return r.loadNextBlock()
			}
			return nil
		case record.KindStart, record.KindMiddle:
			if err := r.loadNextBlock(); err != nil {
				return err
			}
		default:
			return dberr.New(dberr.KindRecordDeserializeFailed, "unrecognized record kind")
		}
	}
}

// Seek positions the cursor at byteOffset, which must be the first byte of
// some record header and must be less than the file size.
func (r *Reader) Seek(byteOffset int64) error {
	if byteOffset < 0 || byteOffset >= r.fileSize {
		return dberr.New(dberr.KindSSTableInvalidOffset, "offset out of range")
	}
	blockOffset := (byteOffset / int64(r.blockSize)) * int64(r.blockSize)
	if err := r.loadBlockAt(blockOffset); err != nil {
		return err
	}
	r.cursor = int(byteOffset - blockOffset)
	return nil
}
