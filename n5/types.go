package n5

import (
	"github.com/robert-malhotra/go-n5/internal/codec"
	"github.com/robert-malhotra/go-n5/internal/dtype"
	"github.com/robert-malhotra/go-n5/internal/grid"
)

// DataType identifies the element kind of a dataset.
type DataType = dtype.DataType

// Supported data types.
const (
	Uint8   = dtype.Uint8
	Uint16  = dtype.Uint16
	Uint32  = dtype.Uint32
	Uint64  = dtype.Uint64
	Int8    = dtype.Int8
	Int16   = dtype.Int16
	Int32   = dtype.Int32
	Int64   = dtype.Int64
	Float32 = dtype.Float32
	Float64 = dtype.Float64
)

// Element is the constraint satisfied by the Go types of the ten
// supported data types.
type Element = dtype.Element

// ParseDataType parses an uppercase data type name such as "FLOAT64".
func ParseDataType(name string) (DataType, error) {
	return dtype.Parse(name)
}

// Compression is the codec applied to every block of a dataset.
type Compression = codec.Codec

// Compression schemes. Parameters must lie in the ranges N5 defines:
// gzip level -1..9, bzip2 blockSize 1..9, xz preset 0..9, zstd level
// 1..22. The zero values of Bzip2Compression and ZstdCompression are
// therefore invalid, and GzipCompression{} selects level 0 (stored). Use
// ParseCompression or DefaultCompression for defaulted parameters.
type (
	RawCompression    = codec.Raw
	GzipCompression   = codec.Gzip
	Bzip2Compression  = codec.Bzip2
	XzCompression     = codec.Xz
	ZstdCompression   = codec.Zstd
	SnappyCompression = codec.Snappy
)

// DefaultCompression returns gzip at the library default level.
func DefaultCompression() Compression {
	return codec.Default()
}

// ParseCompression builds a codec from an N5 compression object such as
// {"type":"bzip2","blockSize":9}.
func ParseCompression(data []byte) (Compression, error) {
	return codec.Parse(data)
}

// BoundingBox is an axis-aligned region given by origin and extent.
type BoundingBox = grid.BoundingBox

// NewBoundingBox returns a box with the given origin and extent.
func NewBoundingBox(translation, dimensions []int64) BoundingBox {
	return grid.NewBoundingBox(translation, dimensions)
}

// Array is a dense array in column-major order: axis 0 varies fastest.
type Array[T Element] struct {
	Shape []int64
	Data  []T
}

// NewArray allocates a zeroed array of the given shape.
func NewArray[T Element](shape ...int64) *Array[T] {
	return &Array[T]{
		Shape: append([]int64(nil), shape...),
		Data:  make([]T, grid.Product(shape)),
	}
}

// Index returns the linear position of the element at pos.
func (a *Array[T]) Index(pos ...int64) int64 {
	var idx, stride int64 = 0, 1
	for i, p := range pos {
		idx += p * stride
		stride *= a.Shape[i]
	}
	return idx
}

// At returns the element at pos.
func (a *Array[T]) At(pos ...int64) T {
	return a.Data[a.Index(pos...)]
}

// Set stores v at pos.
func (a *Array[T]) Set(v T, pos ...int64) {
	a.Data[a.Index(pos...)] = v
}

// Block is a stored block: its grid position, shape and big-endian element
// bytes in column-major order.
type Block struct {
	GridPosition []int64
	Size         []int32
	Data         []byte
}

// NumElements returns the number of elements described by Size.
func (b *Block) NumElements() int64 {
	n := int64(1)
	for _, s := range b.Size {
		n *= int64(s)
	}
	return n
}
