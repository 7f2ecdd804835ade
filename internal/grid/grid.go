package grid

import (
	"fmt"
	"iter"
)

// BoundingBox is an axis-aligned region given by an inclusive origin and
// an extent along each axis.
type BoundingBox struct {
	Translation []int64
	Dimensions  []int64
}

// NewBoundingBox returns a box with the given origin and extent.
func NewBoundingBox(translation, dimensions []int64) BoundingBox {
	return BoundingBox{Translation: translation, Dimensions: dimensions}
}

// Rank returns the number of axes.
func (b BoundingBox) Rank() int {
	return len(b.Dimensions)
}

// Empty reports whether the box contains no elements.
func (b BoundingBox) Empty() bool {
	for _, d := range b.Dimensions {
		if d <= 0 {
			return true
		}
	}
	return false
}

// NumElements returns the number of elements in the box.
func (b BoundingBox) NumElements() int64 {
	return Product(b.Dimensions)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%v+%v", b.Translation, b.Dimensions)
}

// Region is the intersection of a box with one block, expressed in both
// block-local and box-local coordinates.
type Region struct {
	BlockOffset []int64
	BoxOffset   []int64
	Extent      []int64
}

// Grid maps between element positions and block coordinates.
type Grid struct {
	dimensions []int64
	blockSize  []int64
}

// New returns the grid of a dataset. The caller is responsible for the
// shapes being valid: equal ranks, positive block sizes and non-negative
// dimensions.
func New(dimensions []int64, blockSize []int32) *Grid {
	g := &Grid{
		dimensions: append([]int64(nil), dimensions...),
		blockSize:  make([]int64, len(blockSize)),
	}
	for i, b := range blockSize {
		g.blockSize[i] = int64(b)
	}
	return g
}

// Rank returns the number of axes.
func (g *Grid) Rank() int {
	return len(g.dimensions)
}

// BlockSize returns the nominal block shape.
func (g *Grid) BlockSize() []int64 {
	return append([]int64(nil), g.blockSize...)
}

// Extent returns the number of blocks along each axis.
func (g *Grid) Extent() []int64 {
	extent := make([]int64, len(g.dimensions))
	for i := range g.dimensions {
		extent[i] = ceilDiv(g.dimensions[i], g.blockSize[i])
	}
	return extent
}

// NumBlocks returns the total number of grid positions.
func (g *Grid) NumBlocks() int64 {
	return Product(g.Extent())
}

// ToGridCoordinate returns the coordinate of the block holding position.
func (g *Grid) ToGridCoordinate(position []int64) []int64 {
	coord := make([]int64, len(position))
	for i, p := range position {
		coord[i] = floorDiv(p, g.blockSize[i])
	}
	return coord
}

// BlockOrigin returns the element position of a block's first element.
func (g *Grid) BlockOrigin(coord []int64) []int64 {
	origin := make([]int64, len(coord))
	for i, c := range coord {
		origin[i] = c * g.blockSize[i]
	}
	return origin
}

// BlockExtent returns the part of a block's shape that lies inside the
// dataset. Interior blocks return the nominal block size.
func (g *Grid) BlockExtent(coord []int64) []int64 {
	extent := make([]int64, len(coord))
	for i, c := range coord {
		extent[i] = min(g.blockSize[i], g.dimensions[i]-c*g.blockSize[i])
		if extent[i] < 0 {
			extent[i] = 0
		}
	}
	return extent
}

// InBounds reports whether coord addresses a block of the grid.
func (g *Grid) InBounds(coord []int64) bool {
	if len(coord) != len(g.dimensions) {
		return false
	}
	extent := g.Extent()
	for i, c := range coord {
		if c < 0 || c >= extent[i] {
			return false
		}
	}
	return true
}

// CheckBox verifies that box has the grid's rank, a non-negative origin
// and lies within the dataset.
func (g *Grid) CheckBox(box BoundingBox) error {
	if len(box.Translation) != len(g.dimensions) || len(box.Dimensions) != len(g.dimensions) {
		return fmt.Errorf("box %v has rank %d/%d, dataset has rank %d",
			box, len(box.Translation), len(box.Dimensions), len(g.dimensions))
	}
	for i := range g.dimensions {
		if box.Translation[i] < 0 || box.Dimensions[i] < 0 {
			return fmt.Errorf("box %v has a negative component on axis %d", box, i)
		}
		if box.Translation[i]+box.Dimensions[i] > g.dimensions[i] {
			return fmt.Errorf("box %v exceeds dataset dimensions %v on axis %d", box, g.dimensions, i)
		}
	}
	return nil
}

// Overlapping yields the coordinate of every block whose extent intersects
// box, in row-major order over the grid (the last axis varies fastest).
// Each yielded slice is freshly allocated.
func (g *Grid) Overlapping(box BoundingBox) iter.Seq[[]int64] {
	return func(yield func([]int64) bool) {
		if box.Empty() || box.Rank() == 0 {
			return
		}
		rank := box.Rank()
		lo := make([]int64, rank)
		hi := make([]int64, rank)
		for i := 0; i < rank; i++ {
			lo[i] = floorDiv(box.Translation[i], g.blockSize[i])
			hi[i] = floorDiv(box.Translation[i]+box.Dimensions[i]-1, g.blockSize[i])
		}

		cur := append([]int64(nil), lo...)
		for {
			if !yield(append([]int64(nil), cur...)) {
				return
			}
			axis := rank - 1
			for axis >= 0 {
				cur[axis]++
				if cur[axis] <= hi[axis] {
					break
				}
				cur[axis] = lo[axis]
				axis--
			}
			if axis < 0 {
				return
			}
		}
	}
}

// Intersect returns the overlap of box with the nominal extent of the block
// at coord. The extent is zero along any axis where they do not meet.
func (g *Grid) Intersect(box BoundingBox, coord []int64) Region {
	rank := len(coord)
	r := Region{
		BlockOffset: make([]int64, rank),
		BoxOffset:   make([]int64, rank),
		Extent:      make([]int64, rank),
	}
	for i := 0; i < rank; i++ {
		blockStart := coord[i] * g.blockSize[i]
		blockEnd := blockStart + g.blockSize[i]
		boxStart := box.Translation[i]
		boxEnd := boxStart + box.Dimensions[i]

		start := max(blockStart, boxStart)
		end := min(blockEnd, boxEnd)
		if end < start {
			end = start
		}
		r.BlockOffset[i] = start - blockStart
		r.BoxOffset[i] = start - boxStart
		r.Extent[i] = end - start
	}
	return r
}

// Contains reports whether box covers every element of the block at coord
// that lies inside the dataset.
func (g *Grid) Contains(box BoundingBox, coord []int64) bool {
	origin := g.BlockOrigin(coord)
	extent := g.BlockExtent(coord)
	for i := range coord {
		if origin[i] < box.Translation[i] ||
			origin[i]+extent[i] > box.Translation[i]+box.Dimensions[i] {
			return false
		}
	}
	return true
}

// Product returns the product of dims; 1 for an empty slice.
func Product(dims []int64) int64 {
	n := int64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
