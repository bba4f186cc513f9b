package memory

import (
	"errors"
	"io"
	"math/bits"
)

// DefaultErasedValue is the content of a freshly erased NOR cell.
const DefaultErasedValue = 0xFF

var (
	ErrorInvalidSize  = errors.New("memory size must be a power of 2")
	ErrorOutOfRange   = errors.New("access outside of memory")
	ErrorSizeMismatch = errors.New("backing file has a different size")
)

// Store is the linear byte-addressable memory behind a flash chip.
type Store interface {
	io.ReaderAt
	io.WriterAt

	Size() int64

	LoadByte(pos int64) byte
	StoreByte(pos int64, value byte)

	// Erase fills [start, start+length) with the erased value.
	Erase(start int64, length int64)
	EraseAll()

	ErasedValue() byte
	SetErasedValue(value byte)
}

func IsPowerOfTwo(size int64) bool {
	return size > 0 && bits.OnesCount64(uint64(size)) == 1
}

type region struct {
	data   []byte
	erased byte
}

func (r *region) Size() int64 {
	return int64(len(r.data))
}

func (r *region) LoadByte(pos int64) byte {
	return r.data[pos]
}

func (r *region) StoreByte(pos int64, value byte) {
	r.data[pos] = value
}

func (r *region) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.data)) {
		return 0, io.EOF
	}

	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *region) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.data)) {
		return 0, ErrorOutOfRange
	}

	n := copy(r.data[off:], p)
	if n < len(p) {
		return n, ErrorOutOfRange
	}
	return n, nil
}

func (r *region) Erase(start int64, length int64) {
	if start < 0 {
		length += start
		start = 0
	}
	if end := int64(len(r.data)); start+length > end {
		length = end - start
	}
	if length <= 0 {
		return
	}

	seg := r.data[start : start+length]
	for i := range seg {
		seg[i] = r.erased
	}
}

func (r *region) EraseAll() {
	r.Erase(0, int64(len(r.data)))
}

func (r *region) ErasedValue() byte {
	return r.erased
}

func (r *region) SetErasedValue(value byte) {
	r.erased = value
}

// Buffer is a Store kept on the Go heap.
type Buffer struct {
	region
}

// New allocates an erased heap store of the given size.
func New(size int64) (*Buffer, error) {
	if !IsPowerOfTwo(size) {
		return nil, ErrorInvalidSize
	}

	b := &Buffer{
		region: region{
			data:   make([]byte, size),
			erased: DefaultErasedValue,
		},
	}
	b.EraseAll()

	return b, nil
}

// Bytes exposes the underlying memory; writes through it bypass the flash rules.
func (b *Buffer) Bytes() []byte {
	return b.data
}
