package n5

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-n5/internal/dtype"
	"github.com/robert-malhotra/go-n5/internal/grid"
)

// Dataset is a handle on one dataset of a store. It caches the dataset's
// attributes but no block contents.
type Dataset struct {
	store    *Store
	owned    bool
	path     string
	attrs    *DatasetAttributes
	readOnly bool
}

// OpenDataset opens the dataset at path within an existing root. It never
// creates anything and fails with ErrRootNotFound if root is missing.
func OpenDataset(root, path string, readOnly bool, opts ...Option) (*Dataset, error) {
	s, err := openStore(root, readOnly, opts)
	if err != nil {
		return nil, err
	}
	d, err := s.OpenDataset(path, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	d.owned = true
	return d, nil
}

// CreateDataset creates the root if needed and a new dataset at path.
func CreateDataset(root, path string, attrs *DatasetAttributes, opts ...Option) (*Dataset, error) {
	s, err := OpenOrCreate(root, opts...)
	if err != nil {
		return nil, err
	}
	d, err := s.NewDataset(path, attrs)
	if err != nil {
		s.Close()
		return nil, err
	}
	d.owned = true
	return d, nil
}

func openStore(root string, readOnly bool, opts []Option) (*Store, error) {
	if readOnly {
		return OpenRoot(root, ModeReadOnly, opts...)
	}
	return OpenRoot(root, ModeReadWrite, opts...)
}

// OpenDataset returns a handle on an existing dataset. WithDataType
// overrides the stored element type.
func (s *Store) OpenDataset(path string, opts ...Option) (*Dataset, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	attrs, err := s.DatasetAttributes(p)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	if o.dataType.Valid() && o.dataType != attrs.dataType {
		s.log.WithFields(logrus.Fields{
			"dataset": p,
			"stored":  attrs.dataType.String(),
			"using":   o.dataType.String(),
		}).Warn("data type differs from stored attributes")
		attrs = attrs.withDataType(o.dataType)
	}

	return &Dataset{store: s, path: p, attrs: attrs, readOnly: s.readOnly}, nil
}

// NewDataset creates a dataset at path and returns a handle on it.
func (s *Store) NewDataset(path string, attrs *DatasetAttributes) (*Dataset, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if err := s.CreateDataset(p, attrs); err != nil {
		return nil, err
	}
	return &Dataset{store: s, path: p, attrs: attrs}, nil
}

// Path returns the dataset path relative to the root.
func (d *Dataset) Path() string { return d.path }

// Store returns the store the dataset belongs to.
func (d *Dataset) Store() *Store { return d.store }

// Attributes returns the dataset attributes.
func (d *Dataset) Attributes() *DatasetAttributes { return d.attrs }

// DataType returns the element type.
func (d *Dataset) DataType() DataType { return d.attrs.dataType }

// Shape returns the dataset dimensions.
func (d *Dataset) Shape() []int64 { return d.attrs.Dimensions() }

// BlockShape returns the nominal block size.
func (d *Dataset) BlockShape() []int32 { return d.attrs.BlockSize() }

// ReadOnly reports whether writes are rejected.
func (d *Dataset) ReadOnly() bool { return d.readOnly }

// Close releases the store if the dataset opened it.
func (d *Dataset) Close() error {
	if d.owned {
		return d.store.Close()
	}
	return nil
}

func (d *Dataset) checkWritable() error {
	if d.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, d.path)
	}
	return nil
}

// ReadBlock reads the raw block at coord; nil if it was never written.
func (d *Dataset) ReadBlock(coord []int64) (*Block, error) {
	return d.store.ReadBlock(d.path, d.attrs, coord)
}

// WriteBlock writes a nominal-size block of big-endian element bytes.
func (d *Dataset) WriteBlock(coord []int64, data []byte) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	return d.store.WriteBlock(d.path, d.attrs, &Block{GridPosition: coord, Data: data})
}

// WriteIrregularBlock writes a block whose size need not match the
// dataset's block size. See Store.WriteIrregularBlock.
func (d *Dataset) WriteIrregularBlock(coord []int64, size []int32, data []byte) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	return d.store.WriteIrregularBlock(d.path, d.attrs, &Block{GridPosition: coord, Size: size, Data: data})
}

// BlockExists reports whether the block at coord has been written.
func (d *Dataset) BlockExists(coord []int64) (bool, error) {
	return d.store.BlockExists(d.path, coord)
}

// RemoveBlock deletes the block at coord.
func (d *Dataset) RemoveBlock(coord []int64) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	return d.store.RemoveBlock(d.path, coord)
}

// ReadNdarray reads box as big-endian element bytes.
func (d *Dataset) ReadNdarray(box BoundingBox, fill []byte) ([]byte, error) {
	return d.store.ReadNdarray(d.path, d.attrs, box, fill)
}

// WriteNdarray writes big-endian element bytes of the given shape at
// translation.
func (d *Dataset) WriteNdarray(translation, shape []int64, data, fill []byte) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	return d.store.WriteNdarray(d.path, d.attrs, translation, shape, data, fill)
}

// ReadValues reads box as a slice of the dataset's element type, returned
// as an interface value such as []float32. fill is a scalar of that type;
// nil means zero.
func (d *Dataset) ReadValues(box BoundingBox, fill interface{}) (interface{}, error) {
	fillBytes, err := d.encodeFill(fill)
	if err != nil {
		return nil, err
	}
	raw, err := d.ReadNdarray(box, fillBytes)
	if err != nil {
		return nil, err
	}
	return dtype.Decode(d.attrs.dataType, raw)
}

// WriteValues writes values, a slice of the dataset's element type in
// column-major order, as an array of the given shape at translation.
func (d *Dataset) WriteValues(translation, shape []int64, values, fill interface{}) error {
	data, err := dtype.Encode(d.attrs.dataType, values)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.path, err)
	}
	fillBytes, err := d.encodeFill(fill)
	if err != nil {
		return err
	}
	return d.WriteNdarray(translation, shape, data, fillBytes)
}

func (d *Dataset) encodeFill(fill interface{}) ([]byte, error) {
	if fill == nil {
		return nil, nil
	}
	b, err := dtype.Encode(d.attrs.dataType, fill)
	if err != nil {
		return nil, fmt.Errorf("fill value for %s: %w", d.path, err)
	}
	return b, nil
}

// checkType fails unless T is the Go type of the dataset's elements.
func checkType[T Element](d *Dataset) error {
	if want := dtype.Of[T](); want != d.attrs.dataType {
		return fmt.Errorf("dataset %s holds %s: %w", d.path, d.attrs.dataType,
			&UnsupportedDataTypeError{Name: want.String()})
	}
	return nil
}

// ReadBlock reads the block at coord as typed elements. It returns nil if
// the block was never written. The array shape is the stored block size.
func ReadBlock[T Element](d *Dataset, coord []int64) (*Array[T], error) {
	if err := checkType[T](d); err != nil {
		return nil, err
	}
	b, err := d.ReadBlock(coord)
	if err != nil || b == nil {
		return nil, err
	}
	return &Array[T]{Shape: int64s(b.Size), Data: dtype.DecodeSlice[T](b.Data)}, nil
}

// WriteBlock writes a nominal-size block of typed elements.
func WriteBlock[T Element](d *Dataset, coord []int64, data []T) error {
	if err := checkType[T](d); err != nil {
		return err
	}
	if int64(len(data)) != d.attrs.BlockCount() {
		return &BlockSizeMismatchError{Expected: d.attrs.BlockCount(), Actual: int64(len(data))}
	}
	return d.WriteBlock(coord, dtype.EncodeSlice(data))
}

// ReadNdarray reads box as a typed dense array.
func ReadNdarray[T Element](d *Dataset, box BoundingBox, fill T) (*Array[T], error) {
	if err := checkType[T](d); err != nil {
		return nil, err
	}
	raw, err := d.ReadNdarray(box, dtype.EncodeSlice([]T{fill}))
	if err != nil {
		return nil, err
	}
	return &Array[T]{
		Shape: append([]int64(nil), box.Dimensions...),
		Data:  dtype.DecodeSlice[T](raw),
	}, nil
}

// WriteNdarray writes a typed dense array with its first element at
// translation.
func WriteNdarray[T Element](d *Dataset, translation []int64, arr *Array[T], fill T) error {
	if err := checkType[T](d); err != nil {
		return err
	}
	if int64(len(arr.Data)) != grid.Product(arr.Shape) {
		return fmt.Errorf("%w: %d elements do not fill shape %v", ErrInvalidShape, len(arr.Data), arr.Shape)
	}
	return d.WriteNdarray(translation, arr.Shape, dtype.EncodeSlice(arr.Data), dtype.EncodeSlice([]T{fill}))
}
