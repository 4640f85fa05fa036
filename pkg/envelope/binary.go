package envelope

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aeolun/distcore/pkg/compression"
	"github.com/aeolun/distcore/pkg/frame"
)

// encodeEnvelope msgpack-encodes root (the structural value with placeholder
// markers already patched in) and wraps it as the two leading wire frames:
// a small header frame describing the payload's own compression, and the
// (possibly compressed) payload frame itself.
func encodeEnvelope(root any, cfg Config) (header, payload frame.Frame, err error) {
	raw, err := msgpack.Marshal(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: envelope encode: %v", ErrMalformedEnvelope, err)
	}

	name, out := cfg.policy().Select(raw)
	if name == "" {
		return frame.Frame{}, frame.Frame(out), nil
	}
	headerBytes, err := msgpack.Marshal(map[string]any{"compression": name})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: envelope header encode: %v", ErrMalformedEnvelope, err)
	}
	return frame.Frame(headerBytes), frame.Frame(out), nil
}

// decodeEnvelope is encodeEnvelope's inverse. An empty header frame means
// the payload is uncompressed.
//
// Numeric contract: normalizeTree widens every decoded integer scalar to
// int64 (an unsigned value past the int64 range stays uint64) and every
// float to float64, regardless of the width the encoder picked on the wire.
// Callers comparing round-tripped values must compare against those widened
// types.
func decodeEnvelope(header, payload frame.Frame) (any, error) {
	var h map[string]any
	if len(header) > 0 {
		if err := msgpack.Unmarshal(header, &h); err != nil {
			return nil, fmt.Errorf("%w: envelope header decode: %v", ErrMalformedEnvelope, err)
		}
	}

	raw := []byte(payload)
	if name, _ := h["compression"].(string); name != "" {
		var err error
		raw, err = compression.Decompress(name, raw)
		if err != nil {
			return nil, err
		}
	}

	var root any
	if err := msgpack.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: envelope payload decode: %v", ErrMalformedEnvelope, err)
	}
	return normalizeTree(root), nil
}

// normalizeTree rewrites msgpack's decode-time container types
// (map[string]interface{} for maps, already []interface{} for arrays, but
// maps keyed by non-string types use map[interface{}]interface{}) into the
// map[string]any/[]any shapes the rest of this package assumes, and widens
// numeric scalars to the int64/float64 contract decodeEnvelope documents.
// msgpack picks the narrowest wire width per value, so without this a
// round-tripped int comes back as whichever of int8/uint16/... happened to
// fit.
func normalizeTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeTree(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeTree(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeTree(val)
		}
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return widenUint(uint64(t))
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return widenUint(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// widenUint converts to int64 when the value fits; anything larger keeps
// its uint64 identity rather than silently going negative.
func widenUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int8:
		return int(t), true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint:
		return int(t), true
	case uint8:
		return int(t), true
	case uint16:
		return int(t), true
	case uint32:
		return int(t), true
	case uint64:
		return int(t), true
	case float32:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

func toIntSlice(v any) ([]int, error) {
	s, ok := v.([]any)
	if !ok {
		if ints, ok := v.([]int); ok {
			return ints, nil
		}
		return nil, fmt.Errorf("expected a sequence, got %T", v)
	}
	out := make([]int, len(s))
	for i, e := range s {
		n, ok := toInt(e)
		if !ok {
			return nil, fmt.Errorf("expected an integer at index %d, got %T", i, e)
		}
		out[i] = n
	}
	return out, nil
}

func toStringSlice(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.([]any)
	if !ok {
		if strs, ok := v.([]string); ok {
			return strs, nil
		}
		return nil, fmt.Errorf("expected a sequence, got %T", v)
	}
	out := make([]string, len(s))
	for i, e := range s {
		str, _ := e.(string)
		out[i] = str
	}
	return out, nil
}
