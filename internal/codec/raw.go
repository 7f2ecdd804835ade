package codec

import "fmt"

// Raw stores block bytes unchanged.
type Raw struct{}

func newRaw(params []byte) (Codec, error) {
	c := &Raw{}
	if err := decodeParams(params, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Raw) Type() string { return "raw" }

func (c *Raw) Validate() error { return nil }

func (c *Raw) Compress(raw []byte) ([]byte, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (c *Raw) Decompress(data []byte, limit int) ([]byte, error) {
	if limit >= 0 && len(data) > limit {
		return nil, fmt.Errorf("%w: raw: %d bytes exceed %d", ErrCorrupt, len(data), limit)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
