// Package frame implements the wire protocol's frame splitter and merger:
// oversize frames are split into bounded chunks before compression so each
// chunk compresses independently, and the receiver merges chunks back by
// matching the sender's declared lengths.
package frame

import (
	"errors"

	"github.com/aeolun/distcore/pkg/bytesize"
)

// DefaultSplitThreshold is the size above which frames are split (64 MiB).
const DefaultSplitThreshold = 64 * 1024 * 1024

// Frame is a contiguous byte buffer: the transport's unit of write. A Frame
// produced by Split is a zero-copy subslice of the input.
type Frame []byte

// ByteLen implements bytesize.Sized.
func (f Frame) ByteLen() int { return len(f) }

var _ bytesize.Sized = Frame(nil)

// ErrFrameMergeMismatch is returned when received frames cannot be grouped
// to match the declared lengths.
var ErrFrameMergeMismatch = errors.New("frame: received chunks do not sum to the declared lengths")

// Split breaks f into chunks of at most threshold bytes each, in order,
// with the last chunk possibly smaller. A frame no larger than threshold is
// returned unsplit as a single-element slice. Splitting is zero-copy: each
// returned Frame is a subslice of f's backing array.
func Split(f Frame, threshold int) []Frame {
	if threshold <= 0 {
		threshold = DefaultSplitThreshold
	}
	if len(f) <= threshold {
		return []Frame{f}
	}
	n := (len(f) + threshold - 1) / threshold
	chunks := make([]Frame, 0, n)
	for off := 0; off < len(f); off += threshold {
		end := off + threshold
		if end > len(f) {
			end = len(f)
		}
		chunks = append(chunks, f[off:end:end])
	}
	return chunks
}

// Merge concatenates consecutive frames so that each merged frame's byte
// length matches the corresponding entry of lengths, in order. When frames
// already align one-to-one with lengths, Merge is a no-op (it returns frames
// unchanged). It fails with ErrFrameMergeMismatch if the running totals
// never land exactly on a declared length, or if frames run out before
// lengths are satisfied.
func Merge(lengths []int, frames []Frame) ([]Frame, error) {
	if len(lengths) == len(frames) {
		aligned := true
		for i, f := range frames {
			if len(f) != lengths[i] {
				aligned = false
				break
			}
		}
		if aligned {
			return frames, nil
		}
	}

	out := make([]Frame, 0, len(lengths))
	idx := 0
	for _, want := range lengths {
		if want == 0 {
			out = append(out, Frame{})
			continue
		}
		start := idx
		total := 0
		for total < want {
			if idx >= len(frames) {
				return nil, ErrFrameMergeMismatch
			}
			total += len(frames[idx])
			idx++
		}
		if total != want {
			return nil, ErrFrameMergeMismatch
		}
		if idx-start == 1 {
			out = append(out, frames[start])
			continue
		}
		merged := make(Frame, 0, want)
		for _, f := range frames[start:idx] {
			merged = append(merged, f...)
		}
		out = append(out, merged)
	}
	if idx != len(frames) {
		return nil, ErrFrameMergeMismatch
	}
	return out, nil
}

// Lengths returns the byte length of each frame, for populating a header's
// "lengths" field.
func Lengths(frames []Frame) []int {
	lengths := make([]int, len(frames))
	for i, f := range frames {
		lengths[i] = bytesize.Of(f)
	}
	return lengths
}
