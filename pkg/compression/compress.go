// Package compression stream decompression with format sniffing
package compression

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hollowlog/magpie/business/entity"
)

type Encoding uint8

const (
	EncodingNone Encoding = iota
	EncodingGzip
	EncodingZstd
	EncodingLZ4
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

type Decompressor struct {
	cfg         *Config
	zstdDecoder *zstd.Decoder
}

type Config struct {
	MaxDecodedSize int64
}

func New(cfg *Config) *Decompressor {
	zstdDecoder, _ := zstd.NewReader(nil)

	return &Decompressor{
		cfg:         cfg,
		zstdDecoder: zstdDecoder,
	}
}

// Sniff detects a compressed-stream encoding by its magic bytes
func (c *Decompressor) Sniff(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, magicGzip):
		return EncodingGzip
	case bytes.HasPrefix(data, magicZstd):
		return EncodingZstd
	case bytes.HasPrefix(data, magicLZ4):
		return EncodingLZ4
	}
	return EncodingNone
}

// Decompress sniffs the encoding and inflates the whole stream.
// Data without a known magic is returned as is with EncodingNone.
func (c *Decompressor) Decompress(data []byte) ([]byte, Encoding, error) {
	enc := c.Sniff(data)

	var (
		out []byte
		err error
	)

	switch enc {
	case EncodingNone:
		return data, EncodingNone, nil
	case EncodingGzip:
		out, err = c.DecompressGzip(data)
	case EncodingZstd:
		out, err = c.DecompressZstd(data)
	case EncodingLZ4:
		out, err = c.DecompressLZ4(data)
	}
	if err != nil {
		return nil, enc, err
	}

	return out, enc, nil
}

func (c *Decompressor) DecompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return c.readBounded(r)
}

func (c *Decompressor) DecompressZstd(data []byte) ([]byte, error) {
	out, err := c.zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > c.cfg.MaxDecodedSize {
		return nil, entity.ErrDecodedSizeExceeded
	}
	return out, nil
}

func (c *Decompressor) DecompressLZ4(data []byte) ([]byte, error) {
	return c.readBounded(lz4.NewReader(bytes.NewReader(data)))
}

// Reader returns a decompressing reader for tar containers behind an
// outer compressed stream
func (c *Decompressor) Reader(data []byte) (io.Reader, Encoding, error) {
	enc := c.Sniff(data)

	switch enc {
	case EncodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		return r, enc, err
	case EncodingZstd:
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, enc, err
		}
		return r.IOReadCloser(), enc, nil
	case EncodingLZ4:
		return lz4.NewReader(bytes.NewReader(data)), enc, nil
	}

	return bytes.NewReader(data), EncodingNone, nil
}

// FlateReader is a zip.RegisterDecompressor hook for the deflate method
func FlateReader(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}

func (c *Decompressor) readBounded(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, c.cfg.MaxDecodedSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > c.cfg.MaxDecodedSize {
		return nil, entity.ErrDecodedSizeExceeded
	}
	return out, nil
}
