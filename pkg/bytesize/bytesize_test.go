package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesByteLen(t *testing.T) {
	tests := []struct {
		name string
		b    Bytes
		want int
	}{
		{"empty", Bytes{}, 0},
		{"nil", nil, 0},
		{"some bytes", Bytes{1, 2, 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.ByteLen())
		})
	}
}

func TestStridedByteLen(t *testing.T) {
	tests := []struct {
		name string
		s    Strided
		want int
	}{
		{"scalar", Strided{Shape: []int{}, ItemSize: 8}, 8},
		{"vector", Strided{Shape: []int{10}, ItemSize: 4}, 40},
		{"matrix", Strided{Shape: []int{3, 4}, ItemSize: 8}, 96},
		{"empty dim", Strided{Shape: []int{0, 4}, ItemSize: 8}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.ByteLen())
		})
	}
}

func TestOf(t *testing.T) {
	assert.Equal(t, 3, Of(Bytes{1, 2, 3}))
	assert.Equal(t, 0, Of(nil))
}

func TestOfBytes(t *testing.T) {
	assert.Equal(t, 5, OfBytes([]byte("hello")))
	assert.Equal(t, 0, OfBytes(nil))
}
