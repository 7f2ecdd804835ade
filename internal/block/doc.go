// Package block encodes and decodes the N5 block wire format.
//
// A stored block is a big-endian header followed by the codec-compressed
// element bytes:
//
//	u16 mode          0 = default, 1 = varlength
//	u16 ndim
//	u32 size[ndim]    block shape, axis 0 first
//	u32 numElements   varlength mode only
//	...               compressed payload
//
// In default mode the payload holds exactly prod(size) elements. Varlength
// mode records an explicit element count that may differ from the shape.
// Elements are big-endian and stored in column-major order.
package block
