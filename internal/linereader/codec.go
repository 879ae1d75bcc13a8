package linereader

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec turns a raw shard stream into decoded text and back.
type Codec interface {
	Name() string
	// Suffix is appended to ".json" to name shards written with the codec.
	Suffix() string
	NewReader(r io.Reader) (io.ReadCloser, error)
	NewWriter(w io.Writer) (io.WriteCloser, error)
}

var (
	Zstd  Codec = zstdCodec{}
	Gzip  Codec = gzipCodec{}
	LZ4   Codec = lz4Codec{}
	Plain Codec = plainCodec{}
)

// CodecFor picks the codec from a shard's file name suffix. Unknown suffixes
// are read as plain text.
func CodecFor(name string) Codec {
	switch {
	case strings.HasSuffix(name, ".zstd"), strings.HasSuffix(name, ".zst"):
		return Zstd
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".gzip"):
		return Gzip
	case strings.HasSuffix(name, ".lz4"):
		return LZ4
	default:
		return Plain
	}
}

// CodecByName resolves a codec from its Name.
func CodecByName(name string) (Codec, bool) {
	for _, c := range []Codec{Zstd, Gzip, LZ4, Plain} {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Suffix() string { return ".zstd" }

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	// A single goroutine keeps per-call decoding cheap to set up and tear down.
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func (zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) Suffix() string { return ".gz" }

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Suffix() string { return ".lz4" }

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

type plainCodec struct{}

func (plainCodec) Name() string { return "plain" }

func (plainCodec) Suffix() string { return "" }

func (plainCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

func (plainCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
