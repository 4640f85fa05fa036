// Package compression holds the process-global registry of named
// compression codecs and the size/cost heuristic that decides, per frame,
// whether compression is worth applying.
package compression

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Built-in codec names.
const (
	Zlib   = "zlib"
	Snappy = "snappy"
	LZ4    = "lz4"
	Zstd   = "zstd"
)

// Selection policy tuning constants.
const (
	// MinCompressSize is the minimum payload size considered for compression.
	MinCompressSize = 10 * 1024
	// EntropySampleSize is how much of a frame's prefix is sampled for the
	// already-compressed heuristic.
	EntropySampleSize = 10 * 1024
	// EntropyRatioThreshold: a sampled byte-entropy ratio above this is
	// treated as "already compressed, don't bother".
	EntropyRatioThreshold = 0.9
	// MinSavingsRatio: compression is kept only if it shrinks the frame by
	// at least this fraction.
	MinSavingsRatio = 0.10
)

// ErrUnknownCompression is returned when a header names a codec that is not
// registered.
var ErrUnknownCompression = errors.New("compression: unknown codec")

// Codec compresses and decompresses whole frames.
type Codec struct {
	Compress   func([]byte) ([]byte, error)
	Decompress func([]byte) ([]byte, error)
}

// registry is a process-wide, read-only-after-init table of codec name to
// Codec. It is populated with the built-in codecs by this package's init and
// may gain additional entries via Register before first use.
var registry = map[string]Codec{}

// defaultCodec is selected at init from the preference order
// zstd > lz4 > snappy > zlib > none.
var defaultCodec string

func init() {
	Register(Zstd, Codec{Compress: compressZstd, Decompress: decompressZstd})
	Register(LZ4, Codec{Compress: compressLZ4, Decompress: decompressLZ4})
	Register(Snappy, Codec{Compress: compressSnappy, Decompress: decompressSnappy})
	Register(Zlib, Codec{Compress: compressZlib, Decompress: decompressZlib})
	defaultCodec = Zstd
}

// Register adds or replaces a codec in the process-global registry. Safe to
// call from package init functions only: the registry is read-only once
// dumps/loads calls are in flight.
func Register(name string, c Codec) {
	registry[name] = c
}

// Default returns the process-wide default codec name.
func Default() string { return defaultCodec }

// Lookup returns the codec registered under name, or ok=false.
func Lookup(name string) (Codec, bool) {
	c, ok := registry[name]
	return c, ok
}

// Decompress decompresses data using the codec named by name. It fails with
// ErrUnknownCompression if name is not registered.
func Decompress(name string, data []byte) ([]byte, error) {
	c, ok := registry[name]
	if !ok {
		return nil, ErrUnknownCompression
	}
	return c.Decompress(data)
}

// Policy controls the selection heuristic; a Policy with zero-value fields
// uses the built-in tuning constants.
type Policy struct {
	MinCompressSize int
	RatioThreshold  float64
	DefaultCodec    string
}

func (p Policy) minCompressSize() int {
	if p.MinCompressSize > 0 {
		return p.MinCompressSize
	}
	return MinCompressSize
}

func (p Policy) ratioThreshold() float64 {
	if p.RatioThreshold > 0 {
		return p.RatioThreshold
	}
	return MinSavingsRatio
}

func (p Policy) codec() string {
	if p.DefaultCodec != "" {
		return p.DefaultCodec
	}
	return defaultCodec
}

// Select decides whether to compress data and, if so, with which codec.
// It returns the codec name used ("" meaning "not compressed") and the
// frame bytes to transmit (data itself when not compressed).
func (p Policy) Select(data []byte) (name string, out []byte) {
	if len(data) < p.minCompressSize() {
		return "", data
	}
	if looksCompressed(data) {
		return "", data
	}
	codecName := p.codec()
	c, ok := registry[codecName]
	if !ok {
		return "", data
	}
	compressed, err := c.Compress(data)
	if err != nil {
		return "", data
	}
	if float64(len(compressed)) > float64(len(data))*(1-p.ratioThreshold()) {
		return "", data
	}
	return codecName, compressed
}

// Select runs the default Policy.
func Select(data []byte) (name string, out []byte) {
	return Policy{}.Select(data)
}

// looksCompressed samples a prefix of data and estimates its byte-level
// Shannon entropy; a ratio (entropy / 8 bits) above EntropyRatioThreshold
// means the data already looks like high-entropy (compressed or encrypted)
// content, so compressing it again is not worth attempting.
func looksCompressed(data []byte) bool {
	sample := data
	if len(sample) > EntropySampleSize {
		sample = sample[:EntropySampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	var histogram [256]int
	for _, b := range sample {
		histogram[b]++
	}
	entropy := 0.0
	n := float64(len(sample))
	for _, count := range histogram {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy/8.0 > EntropyRatioThreshold
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func compressSnappy(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func decompressSnappy(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

// lz4's block format has no self-describing length, so the uncompressed
// size is prefixed as 4 big-endian bytes ahead of the compressed block.
func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	out := make([]byte, 4+bound)
	binary.BigEndian.PutUint32(out[:4], uint32(len(data)))

	n, err := lz4.CompressBlock(data, out[4:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.New("compression: lz4 block incompressible")
	}
	return out[:4+n], nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("compression: lz4 payload too short")
	}
	size := binary.BigEndian.Uint32(data[:4])
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	if zstdEncoder, err = zstd.NewWriter(nil); err != nil {
		panic(err)
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, nil)
}
