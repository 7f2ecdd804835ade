package codec

import (
	"bytes"
	"fmt"

	"github.com/ulikunitz/xz"
)

// presetDictCap mirrors the dictionary sizes of the xz tool's presets.
var presetDictCap = [10]int{
	256 << 10, 1 << 20, 2 << 20, 4 << 20, 4 << 20,
	8 << 20, 8 << 20, 16 << 20, 32 << 20, 64 << 20,
}

// Xz implements LZMA2 compression in the xz container format.
type Xz struct {
	Preset int `json:"preset"`
}

func newXz(params []byte) (Codec, error) {
	c := &Xz{Preset: 6}
	if err := decodeParams(params, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Xz) Type() string { return "xz" }

func (c *Xz) Validate() error {
	return checkRange("xz", "preset", c.Preset, 0, len(presetDictCap)-1)
}

func (c *Xz) Compress(raw []byte) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	cfg := xz.WriterConfig{DictCap: presetDictCap[c.Preset]}
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("xz compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("xz compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Xz) Decompress(data []byte, limit int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, corrupt("xz", err)
	}
	return readLimited("xz", r, limit)
}
