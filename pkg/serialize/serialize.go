// Package serialize implements the serializer dispatch registry: named
// families that turn an opaque user value into a (header, frames) tuple and
// back, tried in a caller-supplied order.
package serialize

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/aeolun/distcore/pkg/frame"
)

// Header is the per-payload metadata attached alongside frames. Only the
// keys the serializer itself is responsible for are set here; the envelope
// codec fills in count/lengths/compression/deserialize afterward.
type Header map[string]any

// Family is a named serialization strategy.
type Family struct {
	Name string
	// Accepts reports whether this family will handle v. A family that
	// declines is skipped by Dispatch.
	Accepts func(v any) bool
	// Serialize converts v into a header and an ordered list of frames.
	// ctx is the caller-supplied context, threaded through unchanged.
	Serialize func(v any, ctx map[string]any) (Header, []frame.Frame, error)
	// Deserialize is the inverse of Serialize.
	Deserialize func(h Header, frames []frame.Frame) (any, error)
}

// ErrSerializationFailed means no family in the caller's order list accepted
// the payload.
var ErrSerializationFailed = errors.New("serialize: no serializer family accepted the value")

// ErrDisallowedSerializer means the family named in a received header is not
// in the receiver's allow-list.
var ErrDisallowedSerializer = errors.New("serialize: serializer family not in allow-list")

// Registry is a name-keyed table of serializer families. The zero value is
// ready for use; NewRegistry pre-populates the built-ins.
type Registry struct {
	families map[string]Family
}

// NewRegistry returns a Registry with the "error", "raw" and "gob" families
// registered.
func NewRegistry() *Registry {
	r := &Registry{families: map[string]Family{}}
	r.Register(errorFamily())
	r.Register(rawFamily())
	r.Register(gobFamily())
	return r
}

// Register adds or replaces a family.
func (r *Registry) Register(f Family) {
	if r.families == nil {
		r.families = map[string]Family{}
	}
	r.families[f.Name] = f
}

// Lookup returns the family registered under name.
func (r *Registry) Lookup(name string) (Family, bool) {
	f, ok := r.families[name]
	return f, ok
}

// Dispatch tries each named family in order and uses the first that accepts
// v. It returns the chosen family's name alongside its (header, frames), or
// ErrSerializationFailed if every family declined (or was unknown).
func (r *Registry) Dispatch(order []string, v any, ctx map[string]any) (name string, h Header, frames []frame.Frame, err error) {
	for _, candidate := range order {
		f, ok := r.families[candidate]
		if !ok {
			continue
		}
		if !f.Accepts(v) {
			continue
		}
		h, frames, err = f.Serialize(v, ctx)
		if err != nil {
			return "", nil, nil, fmt.Errorf("serialize: family %q: %w", candidate, err)
		}
		return f.Name, h, frames, nil
	}
	return "", nil, nil, ErrSerializationFailed
}

// DeserializeWith looks up name in allowed (the receive-side allow-list) and
// in the registry, then runs its Deserialize.
func (r *Registry) DeserializeWith(name string, allowed []string, h Header, frames []frame.Frame) (any, error) {
	if len(allowed) > 0 && !contains(allowed, name) {
		return nil, fmt.Errorf("%w: %q", ErrDisallowedSerializer, name)
	}
	f, ok := r.families[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDisallowedSerializer, name)
	}
	return f.Deserialize(h, frames)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// rawFamily passes a []byte value through unchanged. Serialize emits one
// frame; Deserialize concatenates however many frames arrive, since a large
// payload reaches the receiver as multiple splitter chunks.
func rawFamily() Family {
	return Family{
		Name: "raw",
		Accepts: func(v any) bool {
			_, ok := v.([]byte)
			return ok
		},
		Serialize: func(v any, _ map[string]any) (Header, []frame.Frame, error) {
			b := v.([]byte)
			return Header{}, []frame.Frame{frame.Frame(b)}, nil
		},
		Deserialize: func(_ Header, frames []frame.Frame) (any, error) {
			if len(frames) == 1 {
				return []byte(frames[0]), nil
			}
			merged := make([]byte, 0, totalLen(frames))
			for _, f := range frames {
				merged = append(merged, f...)
			}
			return merged, nil
		},
	}
}

// gobFamily is the generic catch-all for any Go value, the idiomatic
// stand-in for the source system's "pickle" family: it accepts everything,
// so it belongs last in a dispatch order.
func gobFamily() Family {
	return Family{
		Name:    "gob",
		Accepts: func(v any) bool { return true },
		Serialize: func(v any, _ map[string]any) (Header, []frame.Frame, error) {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
				return nil, nil, fmt.Errorf("gob encode: %w", err)
			}
			return Header{}, []frame.Frame{frame.Frame(buf.Bytes())}, nil
		},
		Deserialize: func(_ Header, frames []frame.Frame) (any, error) {
			if len(frames) == 0 {
				return nil, errors.New("gob decode: no frames")
			}
			merged := make([]byte, 0, totalLen(frames))
			for _, f := range frames {
				merged = append(merged, f...)
			}
			var v any
			if err := gob.NewDecoder(bytes.NewReader(merged)).Decode(&v); err != nil {
				return nil, fmt.Errorf("gob decode: %w", err)
			}
			return v, nil
		},
	}
}

// errorFamily produces the synthetic diagnostic payload dumps() falls back
// to under on_error="message": its frames hold nothing but the failure
// message, so a receiver that doesn't special-case it still gets a
// decodable, if unusable, value back.
func errorFamily() Family {
	return Family{
		Name:    "error",
		Accepts: func(v any) bool { return false }, // never chosen by normal dispatch
		Serialize: func(v any, _ map[string]any) (Header, []frame.Frame, error) {
			msg, _ := v.(string)
			return Header{}, []frame.Frame{frame.Frame(msg)}, nil
		},
		Deserialize: func(_ Header, frames []frame.Frame) (any, error) {
			if len(frames) == 0 {
				return "", nil
			}
			return string(frames[0]), nil
		},
	}
}

// DiagnosticPayload builds the (header, frames) pair for an "error" family
// payload carrying msg, for use by the envelope codec's on_error="message"
// recovery path.
func DiagnosticPayload(msg string) (Header, []frame.Frame) {
	return Header{}, []frame.Frame{frame.Frame(msg)}
}

func totalLen(frames []frame.Frame) int {
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	return n
}
