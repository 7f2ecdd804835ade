package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

// Snappy implements the Snappy block format.
type Snappy struct{}

func newSnappy(params []byte) (Codec, error) {
	c := &Snappy{}
	if err := decodeParams(params, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Snappy) Type() string { return "snappy" }

func (c *Snappy) Validate() error { return nil }

func (c *Snappy) Compress(raw []byte) ([]byte, error) {
	return snappy.Encode(nil, raw), nil
}

func (c *Snappy) Decompress(data []byte, limit int) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, corrupt("snappy", err)
	}
	if limit >= 0 && n > limit {
		return nil, fmt.Errorf("%w: snappy: decoded length %d exceeds %d", ErrCorrupt, n, limit)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, corrupt("snappy", err)
	}
	return out, nil
}
