// Package gateway is a demo peer transport: it relays envelope.Dumps output
// between connected endpoints without materializing the payloads in between.
package gateway

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxWireMessageFrames bounds how many frames (envelope and body frames
// together) a single relayed message may carry, a sanity check against a
// hostile or corrupt peer.
const MaxWireMessageFrames = 1 << 16

// Message types, carried in the wire header's Type byte.
const (
	TypeData uint8 = iota
	TypePing
	TypePong
)

// WireVersion is this package's own small framing format version, separate
// from envelope.Dumps' wire contents.
const WireVersion uint8 = 1

var (
	ErrTooManyFrames = errors.New("gateway: message exceeds MaxWireMessageFrames")
	ErrWireVersion   = errors.New("gateway: unsupported wire version")
)

// WireMessage is one relayed unit: a control message (ping/pong, no frames)
// or a data message carrying one envelope.Dumps()/Loads() frame sequence.
type WireMessage struct {
	Type   uint8
	Frames [][]byte
}

// EncodeWireMessage writes m to w as:
// [Version(1)][Type(1)][FrameCount(4)]{[Len(4)][Data(Len)]}*, big-endian.
func EncodeWireMessage(w io.Writer, m WireMessage) error {
	if len(m.Frames) > MaxWireMessageFrames {
		return ErrTooManyFrames
	}
	header := make([]byte, 6)
	header[0] = WireVersion
	header[1] = m.Type
	binary.BigEndian.PutUint32(header[2:], uint32(len(m.Frames)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, f := range m.Frames {
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(f)))
		if _, err := w.Write(lenBuf); err != nil {
			return err
		}
		if len(f) > 0 {
			if _, err := w.Write(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeWireMessage reads one WireMessage from r.
func DecodeWireMessage(r io.Reader) (*WireMessage, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != WireVersion {
		return nil, ErrWireVersion
	}
	count := binary.BigEndian.Uint32(header[2:])
	if count > MaxWireMessageFrames {
		return nil, ErrTooManyFrames
	}
	frames := make([][]byte, count)
	for i := range frames {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(lenBuf)
		buf := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
		}
		frames[i] = buf
	}
	return &WireMessage{Type: header[1], Frames: frames}, nil
}
