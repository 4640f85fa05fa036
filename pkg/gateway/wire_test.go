package gateway

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeWireMessageRoundTrip(t *testing.T) {
	msg := WireMessage{Type: TypeData, Frames: [][]byte{[]byte("header"), []byte("payload"), {}}}

	var buf bytes.Buffer
	require.NoError(t, EncodeWireMessage(&buf, msg))

	got, err := DecodeWireMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, got.Type)
	assert.Equal(t, msg.Frames, got.Frames)
}

func TestEncodeWireMessageRejectsTooManyFrames(t *testing.T) {
	msg := WireMessage{Type: TypeData, Frames: make([][]byte, MaxWireMessageFrames+1)}
	err := EncodeWireMessage(&bytes.Buffer{}, msg)
	assert.ErrorIs(t, err, ErrTooManyFrames)
}

func TestDecodeWireMessageRejectsBadVersion(t *testing.T) {
	buf := []byte{0xFF, 0, 0, 0, 0, 0}
	_, err := DecodeWireMessage(bytes.NewReader(buf))
	assert.ErrorIs(t, err, ErrWireVersion)
}

func TestPingPongHaveNoFrames(t *testing.T) {
	msg := WireMessage{Type: TypePing}
	var buf bytes.Buffer
	require.NoError(t, EncodeWireMessage(&buf, msg))

	got, err := DecodeWireMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypePing, got.Type)
	assert.Empty(t, got.Frames)
}

func TestWireMessageRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frameCount := rapid.IntRange(0, 5).Draw(t, "frameCount")
		frames := make([][]byte, frameCount)
		for i := range frames {
			size := rapid.IntRange(0, 200).Draw(t, "frameSize")
			frames[i] = rapid.SliceOfN(rapid.Byte(), size, size).Draw(t, "frameData")
		}
		msg := WireMessage{Type: TypeData, Frames: frames}

		var buf bytes.Buffer
		if err := EncodeWireMessage(&buf, msg); err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		got, err := DecodeWireMessage(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if len(got.Frames) != len(frames) {
			t.Fatalf("frame count mismatch: want %d, got %d", len(frames), len(got.Frames))
		}
		for i := range frames {
			if !bytes.Equal(got.Frames[i], frames[i]) {
				t.Fatalf("frame %d mismatch", i)
			}
		}
	})
}
