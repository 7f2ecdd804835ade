package dtype

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// DataType identifies the element kind stored in a dataset.
type DataType uint8

// Supported element kinds. The zero value is invalid.
const (
	Uint8 DataType = iota + 1
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
)

var typeInfo = map[DataType]struct {
	name string
	tag  string
	size int
	kind reflect.Kind
}{
	Uint8:   {"UINT8", "uint8", 1, reflect.Uint8},
	Uint16:  {"UINT16", "uint16", 2, reflect.Uint16},
	Uint32:  {"UINT32", "uint32", 4, reflect.Uint32},
	Uint64:  {"UINT64", "uint64", 8, reflect.Uint64},
	Int8:    {"INT8", "int8", 1, reflect.Int8},
	Int16:   {"INT16", "int16", 2, reflect.Int16},
	Int32:   {"INT32", "int32", 4, reflect.Int32},
	Int64:   {"INT64", "int64", 8, reflect.Int64},
	Float32: {"FLOAT32", "float32", 4, reflect.Float32},
	Float64: {"FLOAT64", "float64", 8, reflect.Float64},
}

// All returns every supported data type in declaration order.
func All() []DataType {
	return []DataType{Uint8, Uint16, Uint32, Uint64, Int8, Int16, Int32, Int64, Float32, Float64}
}

// Names returns the uppercase names of all supported data types.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, dt := range all {
		names[i] = dt.String()
	}
	return names
}

// UnsupportedError reports a data type name that is not one of the ten
// supported kinds.
type UnsupportedError struct {
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported data type %q: choose from (%s)", e.Name, strings.Join(Names(), ", "))
}

// Parse returns the data type for an uppercase name such as "UINT8".
func Parse(name string) (DataType, error) {
	for dt, info := range typeInfo {
		if info.name == name {
			return dt, nil
		}
	}
	return 0, &UnsupportedError{Name: name}
}

// ParseTag returns the data type for a lowercase attributes.json tag such as "uint8".
func ParseTag(tag string) (DataType, error) {
	for dt, info := range typeInfo {
		if info.tag == tag {
			return dt, nil
		}
	}
	return 0, &UnsupportedError{Name: tag}
}

// Valid reports whether dt is one of the supported kinds.
func (dt DataType) Valid() bool {
	_, ok := typeInfo[dt]
	return ok
}

// String returns the uppercase name, e.g. "FLOAT32".
func (dt DataType) String() string {
	if info, ok := typeInfo[dt]; ok {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", uint8(dt))
}

// Tag returns the lowercase attributes.json tag, e.g. "float32".
func (dt DataType) Tag() string {
	return typeInfo[dt].tag
}

// Size returns the size of a single element in bytes.
func (dt DataType) Size() int {
	return typeInfo[dt].size
}

// MarshalJSON encodes the data type as its lowercase tag.
func (dt DataType) MarshalJSON() ([]byte, error) {
	if !dt.Valid() {
		return nil, &UnsupportedError{Name: dt.String()}
	}
	return json.Marshal(dt.Tag())
}

// UnmarshalJSON decodes a lowercase tag.
func (dt *DataType) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("dataType must be a string: %w", err)
	}
	parsed, err := ParseTag(tag)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// Element is the set of Go types that can be stored in a dataset.
type Element interface {
	uint8 | uint16 | uint32 | uint64 | int8 | int16 | int32 | int64 | float32 | float64
}

// Of returns the data type that stores elements of type T.
func Of[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	default:
		return Float64
	}
}
