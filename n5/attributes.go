package n5

import (
	"encoding/json"
	"fmt"

	"github.com/robert-malhotra/go-n5/internal/codec"
	"github.com/robert-malhotra/go-n5/internal/dtype"
	"github.com/robert-malhotra/go-n5/internal/grid"
)

// Keys of the dataset record in attributes.json.
const (
	keyDimensions      = "dimensions"
	keyBlockSize       = "blockSize"
	keyDataType        = "dataType"
	keyCompression     = "compression"
	keyCompressionType = "compressionType"
	keyVersion         = "n5"
)

var datasetKeys = []string{keyDimensions, keyBlockSize, keyDataType, keyCompression, keyCompressionType}

func isDatasetKey(k string) bool {
	for _, d := range datasetKeys {
		if k == d {
			return true
		}
	}
	return false
}

// DatasetAttributes describes the layout of a dataset. It is immutable.
type DatasetAttributes struct {
	dimensions  []int64
	blockSize   []int32
	dataType    DataType
	compression Compression
	grid        *grid.Grid
}

// NewDatasetAttributes validates and returns dataset attributes. A nil
// compression selects DefaultCompression; codec parameters out of range
// fail with ErrInvalidCompression.
func NewDatasetAttributes(dimensions []int64, blockSize []int32, dataType DataType, compression Compression) (*DatasetAttributes, error) {
	if len(dimensions) == 0 {
		return nil, fmt.Errorf("%w: rank must be at least 1", ErrInvalidShape)
	}
	if len(dimensions) != len(blockSize) {
		return nil, fmt.Errorf("%w: dimensions %v and block size %v differ in rank", ErrInvalidShape, dimensions, blockSize)
	}
	for i := range dimensions {
		if dimensions[i] < 0 {
			return nil, fmt.Errorf("%w: negative dimension %d on axis %d", ErrInvalidShape, dimensions[i], i)
		}
		if blockSize[i] <= 0 {
			return nil, fmt.Errorf("%w: block size %d on axis %d must be positive", ErrInvalidShape, blockSize[i], i)
		}
	}
	if !dataType.Valid() {
		return nil, &UnsupportedDataTypeError{Name: dataType.String()}
	}
	if compression == nil {
		compression = codec.Default()
	}
	if err := compression.Validate(); err != nil {
		return nil, err
	}

	dims := append([]int64(nil), dimensions...)
	bs := append([]int32(nil), blockSize...)
	return &DatasetAttributes{
		dimensions:  dims,
		blockSize:   bs,
		dataType:    dataType,
		compression: compression,
		grid:        grid.New(dims, bs),
	}, nil
}

// Dimensions returns the dataset extent per axis.
func (a *DatasetAttributes) Dimensions() []int64 {
	return append([]int64(nil), a.dimensions...)
}

// BlockSize returns the nominal block extent per axis.
func (a *DatasetAttributes) BlockSize() []int32 {
	return append([]int32(nil), a.blockSize...)
}

func (a *DatasetAttributes) DataType() DataType       { return a.dataType }
func (a *DatasetAttributes) Compression() Compression { return a.compression }
func (a *DatasetAttributes) Rank() int                { return len(a.dimensions) }
func (a *DatasetAttributes) ElementSize() int         { return a.dataType.Size() }

// BlockCount returns the number of elements in a nominal block.
func (a *DatasetAttributes) BlockCount() int64 {
	n := int64(1)
	for _, b := range a.blockSize {
		n *= int64(b)
	}
	return n
}

// BlockBytes returns the uncompressed byte size of a nominal block.
func (a *DatasetAttributes) BlockBytes() int64 {
	return a.BlockCount() * int64(a.ElementSize())
}

// GridExtent returns the number of blocks along each axis.
func (a *DatasetAttributes) GridExtent() []int64 {
	return a.grid.Extent()
}

// NumBlocks returns the number of grid positions.
func (a *DatasetAttributes) NumBlocks() int64 {
	return a.grid.NumBlocks()
}

// ToGridCoordinate returns the grid coordinate of the block holding position.
func (a *DatasetAttributes) ToGridCoordinate(position []int64) []int64 {
	return a.grid.ToGridCoordinate(position)
}

// BlockOrigin returns the position of the first element of a block.
func (a *DatasetAttributes) BlockOrigin(coord []int64) []int64 {
	return a.grid.BlockOrigin(coord)
}

// withDataType returns a copy using dt as element type.
func (a *DatasetAttributes) withDataType(dt DataType) *DatasetAttributes {
	c := *a
	c.dataType = dt
	return &c
}

// MarshalJSON encodes the dataset record.
func (a *DatasetAttributes) MarshalJSON() ([]byte, error) {
	fields, err := a.fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes and validates a dataset record.
func (a *DatasetAttributes) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %w", ErrAttributeParse, err)
	}
	parsed, err := decodeDatasetAttributes(fields)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

func (a *DatasetAttributes) fields() (map[string]json.RawMessage, error) {
	comp, err := codec.Marshal(a.compression)
	if err != nil {
		return nil, err
	}
	dims, err := json.Marshal(a.dimensions)
	if err != nil {
		return nil, err
	}
	bs, err := json.Marshal(a.blockSize)
	if err != nil {
		return nil, err
	}
	dt, err := json.Marshal(a.dataType)
	if err != nil {
		return nil, err
	}
	return map[string]json.RawMessage{
		keyDimensions:  dims,
		keyBlockSize:   bs,
		keyDataType:    dt,
		keyCompression: comp,
	}, nil
}

// hasDatasetKeys reports whether an attribute record describes a dataset.
func hasDatasetKeys(fields map[string]json.RawMessage) bool {
	for _, k := range []string{keyDimensions, keyBlockSize, keyDataType} {
		if _, ok := fields[k]; !ok {
			return false
		}
	}
	_, comp := fields[keyCompression]
	_, legacy := fields[keyCompressionType]
	return comp || legacy
}

func decodeDatasetAttributes(fields map[string]json.RawMessage) (*DatasetAttributes, error) {
	if !hasDatasetKeys(fields) {
		return nil, fmt.Errorf("%w: missing dataset keys", ErrAttributeParse)
	}

	var dims []int64
	if err := json.Unmarshal(fields[keyDimensions], &dims); err != nil {
		return nil, fmt.Errorf("%w: dimensions: %w", ErrAttributeParse, err)
	}
	var bs []int32
	if err := json.Unmarshal(fields[keyBlockSize], &bs); err != nil {
		return nil, fmt.Errorf("%w: blockSize: %w", ErrAttributeParse, err)
	}

	var tag string
	if err := json.Unmarshal(fields[keyDataType], &tag); err != nil {
		return nil, fmt.Errorf("%w: dataType: %w", ErrAttributeParse, err)
	}
	dt, err := dtype.ParseTag(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttributeParse, err)
	}

	var comp Compression
	if raw, ok := fields[keyCompression]; ok {
		comp, err = codec.Parse(raw)
	} else {
		var name string
		if err = json.Unmarshal(fields[keyCompressionType], &name); err == nil {
			comp, err = codec.FromType(name)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttributeParse, err)
	}

	attrs, err := NewDatasetAttributes(dims, bs, dt, comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttributeParse, err)
	}
	return attrs, nil
}
