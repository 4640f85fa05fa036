package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSplitUnderThreshold(t *testing.T) {
	f := Frame("hello")
	chunks := Split(f, 1024)
	require.Len(t, chunks, 1)
	assert.Equal(t, f, chunks[0])
}

func TestSplitExactMultiple(t *testing.T) {
	f := Frame(make([]byte, 30))
	for i := range f {
		f[i] = byte(i)
	}
	chunks := Split(f, 10)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Len(t, c, 10)
		assert.Equal(t, f[i*10:(i+1)*10], c)
	}
}

func TestSplitRemainder(t *testing.T) {
	f := Frame(make([]byte, 25))
	chunks := Split(f, 10)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[1], 10)
	assert.Len(t, chunks[2], 5)
}

func TestSplitIsZeroCopy(t *testing.T) {
	f := Frame(make([]byte, 20))
	chunks := Split(f, 10)
	chunks[0][0] = 0xFF
	assert.Equal(t, byte(0xFF), f[0])
}

func TestMergeNoOpWhenAligned(t *testing.T) {
	frames := []Frame{{1, 2}, {3, 4, 5}}
	lengths := Lengths(frames)
	merged, err := Merge(lengths, frames)
	require.NoError(t, err)
	assert.Equal(t, frames, merged)
}

func TestMergeCombinesChunks(t *testing.T) {
	original := Frame(make([]byte, 25))
	for i := range original {
		original[i] = byte(i)
	}
	chunks := Split(original, 10)
	merged, err := Merge([]int{25}, chunks)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, original, merged[0])
}

func TestMergeMismatchErrors(t *testing.T) {
	_, err := Merge([]int{10}, []Frame{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrFrameMergeMismatch)
}

func TestMergeZeroLengthEntry(t *testing.T) {
	merged, err := Merge([]int{0, 3}, []Frame{{1, 2, 3}})
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Empty(t, merged[0])
	assert.Equal(t, Frame{1, 2, 3}, merged[1])
}

// TestSplitMergeRoundTrip checks that splitting at any threshold and merging
// back with the resulting lengths always reconstructs the original bytes.
func TestSplitMergeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(0, 5000).Draw(t, "size")
		threshold := rapid.IntRange(1, 2000).Draw(t, "threshold")
		data := rapid.SliceOfN(rapid.Byte(), size, size).Draw(t, "data")

		chunks := Split(Frame(data), threshold)
		merged, err := Merge([]int{size}, chunks)
		if err != nil {
			t.Fatalf("merge failed: %v", err)
		}
		if len(merged) != 1 {
			t.Fatalf("expected 1 merged frame, got %d", len(merged))
		}
		if string(merged[0]) != string(data) {
			t.Fatalf("round-trip mismatch")
		}
	})
}
