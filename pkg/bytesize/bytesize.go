// Package bytesize reports the exact byte extent of a frame-like buffer
// without copying it, including multi-dimensional or strided views.
package bytesize

// Sized is implemented by anything that knows its own byte extent without
// touching the backing storage.
type Sized interface {
	ByteLen() int
}

// Bytes is a contiguous byte buffer.
type Bytes []byte

// ByteLen returns len(b).
func (b Bytes) ByteLen() int { return len(b) }

// Strided describes a multi-dimensional or strided view over a buffer: a
// shape (element count per dimension) and the size in bytes of one element.
// Its byte extent is the product of the shape times the item size, computed
// without ever reading the underlying buffer.
type Strided struct {
	Shape    []int
	ItemSize int
}

// ByteLen returns the product of Shape times ItemSize.
func (s Strided) ByteLen() int {
	n := s.ItemSize
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// Of returns the byte extent of v, or 0 when v is nil. frame.Lengths uses it
// to populate a header's lengths; the splitter and the compression heuristic
// work on plain byte slices and take len() directly.
func Of(v Sized) int {
	if v == nil {
		return 0
	}
	return v.ByteLen()
}

// OfBytes is a convenience for the common case of a plain []byte frame.
func OfBytes(b []byte) int { return len(b) }
