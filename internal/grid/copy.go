package grid

// Strides returns the byte stride of each axis of a column-major buffer of
// the given shape.
func Strides(shape []int64, elemSize int) []int64 {
	strides := make([]int64, len(shape))
	s := int64(elemSize)
	for i := range shape {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// CopyRegion copies an extent-shaped region starting at srcOffset in src
// (shape srcShape) to dstOffset in dst (shape dstShape). Both buffers are
// column-major with elemSize-byte elements. Rows along axis 0 are copied
// contiguously.
func CopyRegion(
	dst []byte, dstShape, dstOffset []int64,
	src []byte, srcShape, srcOffset []int64,
	extent []int64, elemSize int,
) {
	if len(extent) == 0 {
		return
	}
	for _, e := range extent {
		if e <= 0 {
			return
		}
	}

	dstStrides := Strides(dstShape, elemSize)
	srcStrides := Strides(srcShape, elemSize)

	var dstStart, srcStart int64
	for i := range extent {
		dstStart += dstOffset[i] * dstStrides[i]
		srcStart += srcOffset[i] * srcStrides[i]
	}

	copyRecursive(dst, src, dstStrides, srcStrides, extent,
		dstStart, srcStart, int64(elemSize), len(extent)-1)
}

func copyRecursive(
	dst, src []byte,
	dstStrides, srcStrides, extent []int64,
	dstIdx, srcIdx, elemSize int64,
	axis int,
) {
	if axis == 0 {
		n := extent[0] * elemSize
		copy(dst[dstIdx:dstIdx+n], src[srcIdx:srcIdx+n])
		return
	}

	for i := int64(0); i < extent[axis]; i++ {
		copyRecursive(dst, src, dstStrides, srcStrides, extent,
			dstIdx+i*dstStrides[axis], srcIdx+i*srcStrides[axis],
			elemSize, axis-1)
	}
}
