package codec

import (
	"bytes"
	"fmt"

	"github.com/dsnet/compress/bzip2"
)

// Bzip2 implements bzip2 compression. BlockSize is in units of 100kB.
type Bzip2 struct {
	BlockSize int `json:"blockSize"`
}

func newBzip2(params []byte) (Codec, error) {
	c := &Bzip2{BlockSize: 9}
	if err := decodeParams(params, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Bzip2) Type() string { return "bzip2" }

func (c *Bzip2) Validate() error {
	return checkRange("bzip2", "blockSize", c.BlockSize, 1, 9)
}

func (c *Bzip2) Compress(raw []byte) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: c.BlockSize})
	if err != nil {
		return nil, fmt.Errorf("bzip2 writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("bzip2 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("bzip2 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Bzip2) Decompress(data []byte, limit int) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, corrupt("bzip2", err)
	}
	defer r.Close()
	return readLimited("bzip2", r, limit)
}
