package codec

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdDecoders holds idle stream decoders. A decoder serves one stream at
// a time, so each Decompress call takes its own.
var zstdDecoders sync.Pool

func getZstdDecoder() (*zstd.Decoder, error) {
	if d, ok := zstdDecoders.Get().(*zstd.Decoder); ok {
		return d, nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// Zstd implements Zstandard compression.
type Zstd struct {
	Level int `json:"level"`

	once sync.Once
	enc  *zstd.Encoder
	err  error
}

func newZstd(params []byte) (Codec, error) {
	c := &Zstd{Level: 3}
	if err := decodeParams(params, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Zstd) Type() string { return "zstd" }

func (c *Zstd) Validate() error {
	return checkRange("zstd", "level", c.Level, 1, 22)
}

func (c *Zstd) encoder() (*zstd.Encoder, error) {
	c.once.Do(func() {
		if c.err = c.Validate(); c.err != nil {
			return
		}
		c.enc, c.err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.Level)),
			zstd.WithEncoderConcurrency(1))
	})
	return c.enc, c.err
}

func (c *Zstd) Compress(raw []byte) ([]byte, error) {
	enc, err := c.encoder()
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return enc.EncodeAll(raw, nil), nil
}

// Decompress streams the frames through a pooled decoder so that the
// limit applies before the output is allocated. EncodeAll writes nothing
// for empty input, so empty data decodes to an empty block.
func (c *Zstd) Decompress(data []byte, limit int) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zstdDecoders.Put(dec)

	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, corrupt("zstd", err)
	}
	return readLimited("zstd", dec, limit)
}
