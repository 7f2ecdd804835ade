package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// order is the byte order of every element inside an N5 block.
var order = binary.BigEndian

// EncodeSlice converts Go values to big-endian block bytes.
func EncodeSlice[T Element](src []T) []byte {
	size := Of[T]().Size()
	data := make([]byte, len(src)*size)

	switch s := any(src).(type) {
	case []uint8:
		copy(data, s)
	case []int8:
		for i, v := range s {
			data[i] = byte(v)
		}
	case []uint16:
		for i, v := range s {
			order.PutUint16(data[i*2:], v)
		}
	case []int16:
		for i, v := range s {
			order.PutUint16(data[i*2:], uint16(v))
		}
	case []uint32:
		for i, v := range s {
			order.PutUint32(data[i*4:], v)
		}
	case []int32:
		for i, v := range s {
			order.PutUint32(data[i*4:], uint32(v))
		}
	case []uint64:
		for i, v := range s {
			order.PutUint64(data[i*8:], v)
		}
	case []int64:
		for i, v := range s {
			order.PutUint64(data[i*8:], uint64(v))
		}
	case []float32:
		for i, v := range s {
			order.PutUint32(data[i*4:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range s {
			order.PutUint64(data[i*8:], math.Float64bits(v))
		}
	}

	return data
}

// DecodeSlice converts big-endian block bytes to Go values. Trailing bytes
// that do not form a whole element are ignored.
func DecodeSlice[T Element](data []byte) []T {
	size := Of[T]().Size()
	n := len(data) / size
	result := make([]T, n)

	switch d := any(result).(type) {
	case []uint8:
		copy(d, data)
	case []int8:
		for i := range d {
			d[i] = int8(data[i])
		}
	case []uint16:
		for i := range d {
			d[i] = order.Uint16(data[i*2:])
		}
	case []int16:
		for i := range d {
			d[i] = int16(order.Uint16(data[i*2:]))
		}
	case []uint32:
		for i := range d {
			d[i] = order.Uint32(data[i*4:])
		}
	case []int32:
		for i := range d {
			d[i] = int32(order.Uint32(data[i*4:]))
		}
	case []uint64:
		for i := range d {
			d[i] = order.Uint64(data[i*8:])
		}
	case []int64:
		for i := range d {
			d[i] = int64(order.Uint64(data[i*8:]))
		}
	case []float32:
		for i := range d {
			d[i] = math.Float32frombits(order.Uint32(data[i*4:]))
		}
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(order.Uint64(data[i*8:]))
		}
	}

	return result
}

// Encode converts Go values to block bytes for a data type known only at
// run time. src may be a slice, array, or scalar whose element kind matches dt.
func Encode(dt DataType, src interface{}) ([]byte, error) {
	if !dt.Valid() {
		return nil, &UnsupportedError{Name: dt.String()}
	}

	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Ptr {
		srcVal = srcVal.Elem()
	}
	if !srcVal.IsValid() {
		return nil, fmt.Errorf("cannot encode nil as %s", dt)
	}

	switch srcVal.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		// Scalar value
		sliceVal := reflect.MakeSlice(reflect.SliceOf(srcVal.Type()), 1, 1)
		sliceVal.Index(0).Set(srcVal)
		srcVal = sliceVal
	}

	if kind := srcVal.Type().Elem().Kind(); kind != typeInfo[dt].kind {
		return nil, fmt.Errorf("cannot encode %v values as %s", kind, dt)
	}

	size := dt.Size()
	n := srcVal.Len()
	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		offset := i * size

		switch elem.Kind() {
		case reflect.Int8:
			data[offset] = byte(elem.Int())
		case reflect.Int16:
			order.PutUint16(data[offset:], uint16(elem.Int()))
		case reflect.Int32:
			order.PutUint32(data[offset:], uint32(elem.Int()))
		case reflect.Int64:
			order.PutUint64(data[offset:], uint64(elem.Int()))
		case reflect.Uint8:
			data[offset] = byte(elem.Uint())
		case reflect.Uint16:
			order.PutUint16(data[offset:], uint16(elem.Uint()))
		case reflect.Uint32:
			order.PutUint32(data[offset:], uint32(elem.Uint()))
		case reflect.Uint64:
			order.PutUint64(data[offset:], elem.Uint())
		case reflect.Float32:
			order.PutUint32(data[offset:], math.Float32bits(float32(elem.Float())))
		case reflect.Float64:
			order.PutUint64(data[offset:], math.Float64bits(elem.Float()))
		}
	}

	return data, nil
}

// Decode converts block bytes to a newly allocated Go slice of the type
// matching dt, returned as an interface value (e.g. []int16 for Int16).
func Decode(dt DataType, data []byte) (interface{}, error) {
	if !dt.Valid() {
		return nil, &UnsupportedError{Name: dt.String()}
	}
	if len(data)%dt.Size() != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %s elements", len(data), dt)
	}

	switch dt {
	case Uint8:
		return DecodeSlice[uint8](data), nil
	case Uint16:
		return DecodeSlice[uint16](data), nil
	case Uint32:
		return DecodeSlice[uint32](data), nil
	case Uint64:
		return DecodeSlice[uint64](data), nil
	case Int8:
		return DecodeSlice[int8](data), nil
	case Int16:
		return DecodeSlice[int16](data), nil
	case Int32:
		return DecodeSlice[int32](data), nil
	case Int64:
		return DecodeSlice[int64](data), nil
	case Float32:
		return DecodeSlice[float32](data), nil
	case Float64:
		return DecodeSlice[float64](data), nil
	default:
		return nil, &UnsupportedError{Name: dt.String()}
	}
}

// Fill returns n elements worth of bytes, each equal to the encoded value.
// value must be exactly one element long.
func Fill(value []byte, n int) []byte {
	size := len(value)
	data := make([]byte, n*size)
	if n == 0 || size == 0 {
		return data
	}

	allZero := true
	for _, b := range value {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return data
	}

	// Double the filled prefix on every pass.
	filled := copy(data, value)
	for filled < len(data) {
		filled += copy(data[filled:], data[:filled])
	}
	return data
}
