package n5

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-n5/internal/dtype"
	"github.com/robert-malhotra/go-n5/internal/grid"
)

// ReadNdarray assembles the dense array covering box from the blocks it
// overlaps. The result holds box.NumElements() big-endian elements in
// column-major order. Elements in blocks that were never written are set
// to fill, one encoded element; nil means zero.
//
// Any block failure aborts the whole read.
func (s *Store) ReadNdarray(path string, attrs *DatasetAttributes, box BoundingBox, fill []byte) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, fmt.Errorf("%w: nil dataset attributes", ErrInvalidShape)
	}
	if err := attrs.grid.CheckBox(box); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	fill, err = fillValue(attrs, fill)
	if err != nil {
		return nil, err
	}

	es := attrs.ElementSize()
	out := dtype.Fill(fill, int(box.NumElements()))

	err = s.forEachBlock(attrs, box, func(coord []int64) error {
		b, err := s.readBlock(p, attrs, coord)
		if err != nil || b == nil {
			return err
		}
		r := attrs.grid.Intersect(box, coord)
		grid.CopyRegion(out, box.Dimensions, r.BoxOffset,
			b.Data, int64s(b.Size), r.BlockOffset,
			clipExtent(r, b), es)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteNdarray scatters a dense column-major array of the given shape into
// the blocks it overlaps, with its first element at translation. Blocks
// only partly covered are read first so their other elements are kept;
// missing blocks start out as fill. Every touched block is written back
// whole.
//
// The write is not atomic across blocks.
func (s *Store) WriteNdarray(path string, attrs *DatasetAttributes, translation, shape []int64, data, fill []byte) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := s.requireDataset(path)
	if err != nil {
		return err
	}
	if attrs == nil {
		return fmt.Errorf("%w: nil dataset attributes", ErrInvalidShape)
	}
	box := grid.NewBoundingBox(translation, shape)
	if err := attrs.grid.CheckBox(box); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	es := attrs.ElementSize()
	if int64(len(data)) != box.NumElements()*int64(es) {
		return fmt.Errorf("%w: %d bytes do not hold an array of shape %v", ErrInvalidShape, len(data), shape)
	}
	fill, err = fillValue(attrs, fill)
	if err != nil {
		return err
	}

	nominal := int64s(attrs.blockSize)
	count := int(attrs.BlockCount())

	return s.forEachBlock(attrs, box, func(coord []int64) error {
		var buf []byte
		if attrs.grid.Contains(box, coord) {
			buf = dtype.Fill(fill, count)
		} else {
			existing, err := s.readBlock(p, attrs, coord)
			if err != nil {
				return err
			}
			buf = nominalBlock(existing, nominal, fill, count, es)
		}

		r := attrs.grid.Intersect(box, coord)
		grid.CopyRegion(buf, nominal, r.BlockOffset,
			data, box.Dimensions, r.BoxOffset,
			r.Extent, es)
		return s.writeBlock(p, attrs, coord, attrs.blockSize, buf)
	})
}

// forEachBlock runs fn for every block overlapping box, at most
// parallelism at a time. The first error stops the remaining blocks.
func (s *Store) forEachBlock(attrs *DatasetAttributes, box BoundingBox, fn func(coord []int64) error) error {
	eg, ctx := errgroup.WithContext(context.Background())
	eg.SetLimit(s.opts.parallelism)

	n := 0
	for coord := range attrs.grid.Overlapping(box) {
		if ctx.Err() != nil {
			break
		}
		n++
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return fn(coord)
		})
	}
	err := eg.Wait()

	s.log.WithFields(logrus.Fields{"box": box.String(), "blocks": n}).Debug("processed blocks")
	return err
}

// nominalBlock returns the element bytes of a nominal-size block built
// from existing, which may be absent or irregularly sized.
func nominalBlock(existing *Block, nominal []int64, fill []byte, count, es int) []byte {
	if existing == nil {
		return dtype.Fill(fill, count)
	}
	stored := int64s(existing.Size)
	if equalInt64(stored, nominal) {
		return existing.Data
	}

	buf := dtype.Fill(fill, count)
	extent := make([]int64, len(nominal))
	for i := range nominal {
		extent[i] = min(stored[i], nominal[i])
	}
	zero := make([]int64, len(nominal))
	grid.CopyRegion(buf, nominal, zero, existing.Data, stored, zero, extent, es)
	return buf
}

// clipExtent limits a block-local region to the block's stored size.
func clipExtent(r grid.Region, b *Block) []int64 {
	extent := make([]int64, len(r.Extent))
	for i := range r.Extent {
		extent[i] = min(r.Extent[i], int64(b.Size[i])-r.BlockOffset[i])
		if extent[i] < 0 {
			extent[i] = 0
		}
	}
	return extent
}

func fillValue(attrs *DatasetAttributes, fill []byte) ([]byte, error) {
	es := attrs.ElementSize()
	if fill == nil {
		return make([]byte, es), nil
	}
	if len(fill) != es {
		return nil, fmt.Errorf("%w: fill value has %d bytes, element size is %d", ErrInvalidShape, len(fill), es)
	}
	return fill, nil
}

func equalInt64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
