// Package dtype provides the N5 element types and their Go representation.
//
// N5 datasets store one of ten numeric element kinds. This package models
// them as the closed enumeration [DataType] and bridges them to Go:
//
//   - Check run-time typed Go values against a data type
//   - Encode Go slices into the big-endian byte layout used inside blocks
//   - Decode block bytes back into Go slices
//   - Build fill-value patterns for unwritten blocks
//
// # Type Mapping
//
//	N5 tag   | Name    | Go type | Size
//	---------|---------|---------|-----
//	uint8    | UINT8   | uint8   | 1
//	uint16   | UINT16  | uint16  | 2
//	uint32   | UINT32  | uint32  | 4
//	uint64   | UINT64  | uint64  | 8
//	int8     | INT8    | int8    | 1
//	int16    | INT16   | int16   | 2
//	int32    | INT32   | int32   | 4
//	int64    | INT64   | int64   | 8
//	float32  | FLOAT32 | float32 | 4
//	float64  | FLOAT64 | float64 | 8
//
// The lowercase tag is what attributes.json carries; the uppercase name is
// the identifier callers use. Both are matched case-sensitively.
//
// # Typed Access
//
// Use the generic helpers when the element type is known at compile time:
//
//	raw := dtype.EncodeSlice([]uint16{1, 2, 3})
//	values := dtype.DecodeSlice[uint16](raw)
//
// Use [Encode] and [Decode] when the type is only known at run time from a
// dataset's attributes.
package dtype
