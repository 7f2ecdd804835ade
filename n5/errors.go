package n5

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-n5/internal/codec"
	"github.com/robert-malhotra/go-n5/internal/dtype"
)

// Common errors
var (
	ErrRootNotFound         = errors.New("n5 root not found")
	ErrRootExists           = errors.New("n5 root already exists")
	ErrInvalidMode          = errors.New("invalid open mode")
	ErrDatasetAlreadyExists = errors.New("dataset already exists")
	ErrDatasetNotFound      = errors.New("dataset not found")
	ErrInvalidShape         = errors.New("invalid shape")
	ErrAttributeParse       = errors.New("attribute parse error")
	ErrCorruptBlock         = errors.New("corrupt block")
	ErrIOFailure            = errors.New("i/o failure")
	ErrClosed               = errors.New("store is closed")
	ErrReadOnly             = errors.New("dataset is read-only")
	ErrIncompatibleVersion  = errors.New("incompatible n5 version")
	ErrInvalidPath          = errors.New("invalid path")

	// ErrInvalidCompression reports codec parameters outside their range.
	ErrInvalidCompression = codec.ErrInvalidParameter
)

// BlockSizeMismatchError reports a block buffer whose element count differs
// from the dataset's block size.
type BlockSizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *BlockSizeMismatchError) Error() string {
	return fmt.Sprintf("block size mismatch: expected %d elements, got %d", e.Expected, e.Actual)
}

// UnsupportedDataTypeError reports a data type name outside the supported
// set. The message lists the supported names.
type UnsupportedDataTypeError = dtype.UnsupportedError

// UnsupportedCodecError reports an unknown compression type.
type UnsupportedCodecError = codec.UnsupportedError

// ioFailure wraps an underlying filesystem error with ErrIOFailure.
func ioFailure(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIOFailure, op, path, err)
}
