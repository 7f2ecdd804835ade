package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Gzip implements DEFLATE compression with either a gzip or a zlib wrapper.
type Gzip struct {
	Level   int  `json:"level"`
	UseZlib bool `json:"useZlib"`
}

func newGzip(params []byte) (Codec, error) {
	c := &Gzip{Level: -1}
	if err := decodeParams(params, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Gzip) Type() string { return "gzip" }

func (c *Gzip) Validate() error {
	return checkRange("gzip", "level", c.Level, -1, 9)
}

func (c *Gzip) Compress(raw []byte) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	if c.UseZlib {
		w, err = zlib.NewWriterLevel(&buf, c.Level)
	} else {
		w, err = gzip.NewWriterLevel(&buf, c.Level)
	}
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Gzip) Decompress(data []byte, limit int) ([]byte, error) {
	var r io.ReadCloser
	var err error
	if c.UseZlib {
		r, err = zlib.NewReader(bytes.NewReader(data))
	} else {
		r, err = gzip.NewReader(bytes.NewReader(data))
	}
	if err != nil {
		return nil, corrupt("gzip", err)
	}
	defer r.Close()
	return readLimited("gzip", r, limit)
}
