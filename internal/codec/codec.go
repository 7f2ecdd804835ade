package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var (
	// ErrCorrupt is returned when compressed input cannot be decoded.
	ErrCorrupt = errors.New("corrupt compressed stream")

	// ErrInvalidParameter is returned for codec parameters outside their range.
	ErrInvalidParameter = errors.New("invalid codec parameter")
)

// Codec compresses and decompresses the serialized bytes of one block.
type Codec interface {
	// Type returns the N5 compression type name.
	Type() string

	// Compress encodes raw block bytes. Output is deterministic for a
	// given codec configuration.
	Compress(raw []byte) ([]byte, error)

	// Decompress decodes bytes produced by Compress. Output longer than
	// limit bytes fails with ErrCorrupt before it is fully materialized; a
	// negative limit means no bound.
	Decompress(data []byte, limit int) ([]byte, error)

	// Validate reports parameters outside the codec's range with
	// ErrInvalidParameter.
	Validate() error
}

// Registry maps compression type names to constructors. Each constructor
// receives the full JSON compression object and applies it over the codec's
// defaults.
var Registry = map[string]func(params []byte) (Codec, error){
	"raw":    newRaw,
	"gzip":   newGzip,
	"bzip2":  newBzip2,
	"xz":     newXz,
	"zstd":   newZstd,
	"snappy": newSnappy,
}

// Names returns the registered type names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnsupportedError reports a compression type with no registered codec.
type UnsupportedError struct {
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported compression type %q (supported: %s)", e.Name, strings.Join(Names(), ", "))
}

// Parse builds a codec from an N5 compression object such as
// {"type":"gzip","level":6}.
func Parse(data []byte) (Codec, error) {
	var header struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parsing compression: %w", err)
	}
	if header.Type == nil {
		return nil, fmt.Errorf("parsing compression: missing type")
	}
	constructor, ok := Registry[*header.Type]
	if !ok {
		return nil, &UnsupportedError{Name: *header.Type}
	}
	return constructor(data)
}

// FromType builds a codec with default parameters. It serves the legacy
// "compressionType" attribute.
func FromType(name string) (Codec, error) {
	constructor, ok := Registry[name]
	if !ok {
		return nil, &UnsupportedError{Name: name}
	}
	return constructor(nil)
}

// Marshal serializes a codec to its N5 compression object with "type" as
// the first key. Invalid parameters are rejected so that every marshalled
// object parses again.
func Marshal(c Codec) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	params, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s parameters: %w", c.Type(), err)
	}
	typ, err := json.Marshal(c.Type())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if inner := bytes.TrimSpace(params[1 : len(params)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Default returns the codec used when none is specified: gzip at the
// library default level.
func Default() Codec {
	return &Gzip{Level: -1}
}

// decodeParams unmarshals params over the defaults already set in v.
func decodeParams(params []byte, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("parsing compression parameters: %w", err)
	}
	return nil
}

func checkRange(codec, param string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s %s %d out of range [%d, %d]", ErrInvalidParameter, codec, param, v, lo, hi)
	}
	return nil
}

func corrupt(codec string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, codec, err)
}

// readLimited drains r, failing once it yields more than limit bytes.
func readLimited(codec string, r io.Reader, limit int) ([]byte, error) {
	if limit < 0 {
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, corrupt(codec, err)
		}
		return out, nil
	}
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, corrupt(codec, err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: %s: output exceeds %d bytes", ErrCorrupt, codec, limit)
	}
	return out, nil
}
