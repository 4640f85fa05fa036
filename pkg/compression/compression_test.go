package compression

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func compressible(n int) []byte {
	return bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), n)
}

func TestCodecRoundTrip(t *testing.T) {
	for _, name := range []string{Zlib, Snappy, LZ4, Zstd} {
		t.Run(name, func(t *testing.T) {
			codec, ok := Lookup(name)
			require.True(t, ok)

			data := compressible(500)
			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed)
		})
	}
}

func TestDecompressUnknownCodec(t *testing.T) {
	_, err := Decompress("bogus", []byte("x"))
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestSelectSkipsSmallPayloads(t *testing.T) {
	name, out := Select([]byte("too small to bother"))
	assert.Equal(t, "", name)
	assert.Equal(t, []byte("too small to bother"), out)
}

func TestSelectCompressesLargePayload(t *testing.T) {
	data := compressible(2000)
	name, out := Select(data)
	require.NotEmpty(t, name)
	assert.Less(t, len(out), len(data))

	back, err := Decompress(name, out)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestSelectSkipsHighEntropyData(t *testing.T) {
	// Pseudo-random bytes look high-entropy; compressing them should be
	// skipped by the policy even though they clear MinCompressSize.
	padded := make([]byte, 2*MinCompressSize)
	rand.New(rand.NewSource(1)).Read(padded)
	require.True(t, looksCompressed(padded))

	name, out := Select(padded)
	assert.Equal(t, "", name)
	assert.Equal(t, padded, out)
}

func TestPolicyCustomThresholds(t *testing.T) {
	p := Policy{MinCompressSize: 1, RatioThreshold: 0.99, DefaultCodec: Zlib}
	data := compressible(100)
	name, _ := p.Select(data)
	// A 0.99 savings bar is unreachable for this input, so Select should
	// decline rather than keep a barely-smaller payload.
	assert.Equal(t, "", name)
}

// TestCompressDecompressRapid checks every codec round-trips arbitrary byte
// slices, not just the compressible fixture above.
func TestCompressDecompressRapid(t *testing.T) {
	for _, name := range []string{Zlib, Snappy, LZ4, Zstd} {
		name := name
		t.Run(name, func(t *testing.T) {
			codec, _ := Lookup(name)
			rapid.Check(t, func(t *rapid.T) {
				size := rapid.IntRange(0, 4096).Draw(t, "size")
				data := rapid.SliceOfN(rapid.Byte(), size, size).Draw(t, "data")

				compressed, err := codec.Compress(data)
				if err != nil {
					// lz4 declines to "compress" empty/incompressible input;
					// that's a valid outcome, not a round-trip candidate.
					return
				}
				decompressed, err := codec.Decompress(compressed)
				if err != nil {
					t.Fatalf("decompress failed: %v", err)
				}
				if !bytes.Equal(decompressed, data) {
					t.Fatalf("round-trip mismatch for %d bytes", size)
				}
			})
		})
	}
}
