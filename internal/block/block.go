package block

import (
	"errors"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-n5/internal/binary"
	"github.com/robert-malhotra/go-n5/internal/codec"
)

// Header modes.
const (
	ModeDefault   uint16 = 0
	ModeVarLength uint16 = 1
	ModeObject    uint16 = 2
)

// ErrCorrupt is returned for a block whose header or payload is malformed.
var ErrCorrupt = errors.New("corrupt block")

// Header is the decoded prefix of a stored block.
type Header struct {
	Mode        uint16
	Size        []int32
	NumElements int64
}

// ElementCount returns the number of elements the payload carries,
// saturating at math.MaxInt64.
func (h Header) ElementCount() int64 {
	if h.Mode == ModeVarLength {
		return h.NumElements
	}
	n := int64(1)
	for _, s := range h.Size {
		if s > 0 && n > math.MaxInt64/int64(s) {
			return math.MaxInt64
		}
		n *= int64(s)
	}
	return n
}

// HeaderLen returns the encoded header length in bytes.
func (h Header) HeaderLen() int {
	n := 4 + 4*len(h.Size)
	if h.Mode == ModeVarLength {
		n += 4
	}
	return n
}

// Encode serializes a block of the given shape. The mode is chosen from
// the element count: default when data holds exactly prod(size) elements,
// varlength otherwise.
func Encode(size []int32, data []byte, elemSize int, c codec.Codec) ([]byte, error) {
	if len(size) == 0 || len(size) > math.MaxUint16 {
		return nil, fmt.Errorf("block rank %d out of range", len(size))
	}
	if elemSize <= 0 || len(data)%elemSize != 0 {
		return nil, fmt.Errorf("block data length %d is not a multiple of element size %d", len(data), elemSize)
	}

	h := Header{Mode: ModeDefault, Size: size}
	count := int64(len(data) / elemSize)
	if count != h.ElementCount() {
		h.Mode = ModeVarLength
		h.NumElements = count
	}

	payload, err := c.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compressing block: %w", err)
	}

	buf := binary.NewBuffer(h.HeaderLen() + len(payload))
	w := binary.NewWriter(buf, binary.DefaultConfig())
	if err := writeHeader(w, h); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeader(w *binary.Writer, h Header) error {
	if err := w.WriteUint16(h.Mode); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(len(h.Size))); err != nil {
		return err
	}
	for _, s := range h.Size {
		if s < 0 {
			return fmt.Errorf("negative block size %v", h.Size)
		}
		if err := w.WriteUint32(uint32(s)); err != nil {
			return err
		}
	}
	if h.Mode == ModeVarLength {
		if h.NumElements > math.MaxInt32 {
			return fmt.Errorf("block element count %d too large", h.NumElements)
		}
		if err := w.WriteUint32(uint32(h.NumElements)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeHeader parses the header at the start of data and returns it along
// with the remaining compressed payload.
func DecodeHeader(data []byte) (Header, []byte, error) {
	r := binary.NewBytesReader(data, binary.DefaultConfig())

	mode, err := r.ReadUint16()
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: reading mode: %v", ErrCorrupt, err)
	}
	if mode != ModeDefault && mode != ModeVarLength {
		return Header{}, nil, fmt.Errorf("%w: unsupported mode %d", ErrCorrupt, mode)
	}

	ndim, err := r.ReadUint16()
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: reading rank: %v", ErrCorrupt, err)
	}
	if ndim == 0 {
		return Header{}, nil, fmt.Errorf("%w: zero rank", ErrCorrupt)
	}

	h := Header{Mode: mode, Size: make([]int32, ndim)}
	for i := range h.Size {
		s, err := r.ReadUint32()
		if err != nil {
			return Header{}, nil, fmt.Errorf("%w: reading size: %v", ErrCorrupt, err)
		}
		if s > math.MaxInt32 {
			return Header{}, nil, fmt.Errorf("%w: size %d on axis %d", ErrCorrupt, s, i)
		}
		h.Size[i] = int32(s)
	}

	if mode == ModeVarLength {
		n, err := r.ReadUint32()
		if err != nil {
			return Header{}, nil, fmt.Errorf("%w: reading element count: %v", ErrCorrupt, err)
		}
		h.NumElements = int64(n)
	}

	payload, err := r.ReadRest()
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return h, payload, nil
}

// Decode parses a stored block and returns its header and decompressed
// element bytes. The payload must decompress to exactly the element count
// times elemSize bytes.
func Decode(data []byte, elemSize int, c codec.Codec) (Header, []byte, error) {
	h, payload, err := DecodeHeader(data)
	if err != nil {
		return Header{}, nil, err
	}

	count := h.ElementCount()
	if elemSize <= 0 || count > int64(math.MaxInt)/int64(elemSize) {
		return Header{}, nil, fmt.Errorf("%w: %d elements of %d bytes overflow", ErrCorrupt, count, elemSize)
	}
	want := count * int64(elemSize)
	raw, err := c.Decompress(payload, int(want))
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if int64(len(raw)) != want {
		return Header{}, nil, fmt.Errorf("%w: decompressed %d bytes, expected %d", ErrCorrupt, len(raw), want)
	}
	return h, raw, nil
}
