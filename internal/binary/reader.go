// Package binary provides the fixed-width integer I/O used by N5 block
// headers.
package binary

import (
	"encoding/binary"
	"errors"
	"io"
)

// Reader reads fixed-width integers and byte runs from an io.ReaderAt of
// known size, tracking its own position.
type Reader struct {
	r     io.ReaderAt
	size  int64
	order binary.ByteOrder
	pos   int64
}

// Config holds reader and writer configuration.
type Config struct {
	ByteOrder binary.ByteOrder
}

// DefaultConfig returns the N5 configuration: every header field and
// element is stored big-endian.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.BigEndian}
}

// NewReader creates a reader over the first size bytes of r.
func NewReader(r io.ReaderAt, size int64, cfg Config) *Reader {
	return &Reader{r: r, size: size, order: cfg.ByteOrder}
}

// NewBytesReader reads an in-memory block.
func NewBytesReader(data []byte, cfg Config) *Reader {
	return NewReader(bytesReaderAt(data), int64(len(data)), cfg)
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int64 {
	if r.pos >= r.size {
		return 0
	}
	return r.size - r.pos
}

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if int64(n) > r.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadRest reads everything from the current position to the end. The
// result is empty, not nil, at the end of input.
func (r *Reader) ReadRest() ([]byte, error) {
	rest := r.Remaining()
	if rest == 0 {
		return []byte{}, nil
	}
	return r.ReadBytes(int(rest))
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(buf), nil
}

type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
