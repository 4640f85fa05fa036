// Package envelope implements the dumps/loads codec: it walks a structural
// value, extracts large-payload markers into independently transmitted body
// frames, and reconstructs the value on the receiving side.
package envelope

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/aeolun/distcore/pkg/compression"
	"github.com/aeolun/distcore/pkg/frame"
	"github.com/aeolun/distcore/pkg/serialize"
)

// Sentinel placeholder keys, part of the wire contract. Reserved: user maps
// must not use these keys.
const (
	headerKey = "_$header"
	findexKey = "_$findex"
	fcountKey = "_$fcount"
)

// Error kinds. The first four are re-exported from the packages that own
// them so callers can match everything here.
var (
	ErrSerializationFailed  = serialize.ErrSerializationFailed
	ErrUnknownCompression   = compression.ErrUnknownCompression
	ErrDisallowedSerializer = serialize.ErrDisallowedSerializer
	ErrFrameMergeMismatch   = frame.ErrFrameMergeMismatch
	ErrMalformedEnvelope    = errors.New("envelope: malformed envelope payload")
)

// OnError selects dumps' recovery policy when serializer dispatch declines
// every family for a payload.
type OnError string

const (
	// OnErrorRaise aborts the whole dumps call (the default).
	OnErrorRaise OnError = "raise"
	// OnErrorMessage substitutes a synthetic "error" family payload and
	// continues.
	OnErrorMessage OnError = "message"
)

// Config bundles the codec tunables plus the registries dumps and loads
// drive.
type Config struct {
	// Serializers is the dispatch order tried for each Unserialized marker.
	Serializers []string
	// AllowedSerializers restricts which families loads will materialize;
	// empty means no restriction.
	AllowedSerializers []string
	OnError            OnError
	Context            map[string]any

	MinCompressSize           int
	CompressionRatioThreshold float64
	SplitThreshold            int
	DefaultCompression        string

	Registry *serialize.Registry
}

func (c Config) registry() *serialize.Registry {
	if c.Registry != nil {
		return c.Registry
	}
	return serialize.NewRegistry()
}

func (c Config) policy() compression.Policy {
	return compression.Policy{
		MinCompressSize: c.MinCompressSize,
		RatioThreshold:  c.CompressionRatioThreshold,
		DefaultCodec:    c.DefaultCompression,
	}
}

func (c Config) splitThreshold() int {
	if c.SplitThreshold > 0 {
		return c.SplitThreshold
	}
	return frame.DefaultSplitThreshold
}

func (c Config) onError() OnError {
	if c.OnError == "" {
		return OnErrorRaise
	}
	return c.OnError
}

var logger = log.Default()

type extraction struct {
	path         path
	unserialized *Unserialized
	pre          *PreSerialized
}

// extractState accumulates the walk's findings in deterministic order.
type extractState struct {
	entries       []extraction
	bytesOnly     map[string]bool
	rootMarkerU   *Unserialized
	rootMarkerPre *PreSerialized
}

// Dumps converts msg into an ordered sequence of frames: an envelope header,
// an envelope payload, and the extracted payloads' body frames.
func Dumps(msg any, cfg Config) (frames []frame.Frame, err error) {
	defer func() {
		if err != nil {
			logger.Printf("CRITICAL: dumps failed: %v", err)
		}
	}()

	state := &extractState{bytesOnly: map[string]bool{}}
	root := walkExtract(msg, nil, state)

	if len(state.entries) == 0 && state.rootMarkerU == nil && state.rootMarkerPre == nil {
		envHeader, envPayload, err := encodeEnvelope(root, cfg)
		if err != nil {
			return nil, err
		}
		return []frame.Frame{envHeader, envPayload}, nil
	}

	reg := cfg.registry()
	var body []frame.Frame

	appendPayload := func(h map[string]any, frames []frame.Frame, bytesOnly bool, alreadyHasCompression bool) map[string]any {
		if _, ok := h["lengths"]; !ok {
			h["lengths"] = frame.Lengths(frames)
		}
		if !alreadyHasCompression {
			split := splitAll(frames, cfg.splitThreshold())
			policy := cfg.policy()
			compNames := make([]string, len(split))
			compressed := make([]frame.Frame, len(split))
			for i, f := range split {
				name, out := policy.Select(f)
				compNames[i] = name
				compressed[i] = out
			}
			frames = compressed
			h["compression"] = compNames
			h["lengths"] = frame.Lengths(split)
		}
		h["count"] = len(frames)
		h["deserialize"] = bytesOnly

		findex := len(body)
		body = append(body, frames...)
		return map[string]any{headerKey: h, findexKey: findex, fcountKey: len(frames)}
	}

	handleRootMarker := func() (any, error) {
		switch {
		case state.rootMarkerU != nil:
			name, h, frames, err := reg.Dispatch(cfg.Serializers, state.rootMarkerU.Value, cfg.Context)
			if err != nil {
				if errors.Is(err, serialize.ErrSerializationFailed) && cfg.onError() == OnErrorMessage {
					name = "error"
					h, frames = serialize.DiagnosticPayload(err.Error())
				} else {
					return nil, err
				}
			}
			h["serializer"] = name
			return appendPayload(h, frames, state.rootMarkerU.BytesOnly, false), nil
		case state.rootMarkerPre != nil:
			h := cloneHeader(state.rootMarkerPre.Header)
			_, hasCompression := h["compression"]
			return appendPayload(h, state.rootMarkerPre.Frames, false, hasCompression), nil
		}
		return root, nil
	}

	if state.rootMarkerU != nil || state.rootMarkerPre != nil {
		placeholder, err := handleRootMarker()
		if err != nil {
			return nil, err
		}
		envHeader, envPayload, err := encodeEnvelope(placeholder, cfg)
		if err != nil {
			return nil, err
		}
		return append([]frame.Frame{envHeader, envPayload}, body...), nil
	}

	for _, e := range state.entries {
		var placeholder map[string]any
		if e.unserialized != nil {
			name, h, frames, err := reg.Dispatch(cfg.Serializers, e.unserialized.Value, cfg.Context)
			if err != nil {
				if errors.Is(err, serialize.ErrSerializationFailed) && cfg.onError() == OnErrorMessage {
					name = "error"
					h, frames = serialize.DiagnosticPayload(fmt.Sprintf("%s: %v", e.path.String(), err))
				} else {
					return nil, err
				}
			}
			h["serializer"] = name
			placeholder = appendPayload(h, frames, e.unserialized.BytesOnly, false)
		} else {
			h := cloneHeader(e.pre.Header)
			_, hasCompression := h["compression"]
			placeholder = appendPayload(h, e.pre.Frames, false, hasCompression)
		}
		if !e.path.set(root, placeholder) {
			return nil, fmt.Errorf("%w: cannot patch path %s", ErrMalformedEnvelope, e.path.String())
		}
	}

	envHeader, envPayload, err := encodeEnvelope(root, cfg)
	if err != nil {
		return nil, err
	}
	return append([]frame.Frame{envHeader, envPayload}, body...), nil
}

// Loads reconstructs the structural value dumps produced. deserialize
// controls whether payloads are materialized via serializer dispatch
// (true) or kept as PreSerialized markers for onward forwarding (false);
// a payload marked bytes-only at dumps time is always materialized.
// frames is consumed: entries are nulled out as their body is read, so
// callers must not reuse the slice afterward.
//
// Integer scalars in the decoded value are int64 and floats are float64,
// whatever width they were encoded at (see decodeEnvelope).
func Loads(frames []frame.Frame, deserialize bool, cfg Config) (msg any, err error) {
	defer func() {
		if err != nil {
			logger.Printf("CRITICAL: loads failed: %v", err)
		}
	}()

	if len(frames) < 2 {
		return nil, fmt.Errorf("%w: fewer than 2 frames", ErrMalformedEnvelope)
	}

	root, err := decodeEnvelope(frames[0], frames[1])
	if err != nil {
		return nil, err
	}
	if len(frames) < 3 {
		return root, nil
	}

	reg := cfg.registry()
	const bodyStart = 2

	var traverse func(v any) (any, error)
	traverse = func(v any) (any, error) {
		if m, ok := v.(map[string]any); ok {
			if h, findex, count, ok := asPlaceholder(m); ok {
				return resolvePlaceholder(frames, bodyStart, h, findex, count, deserialize, reg, cfg)
			}
			out := make(map[string]any, len(m))
			for k, val := range m {
				resolved, err := traverse(val)
				if err != nil {
					return nil, err
				}
				out[k] = resolved
			}
			return out, nil
		}
		if s, ok := v.([]any); ok {
			out := make([]any, len(s))
			for i, val := range s {
				resolved, err := traverse(val)
				if err != nil {
					return nil, err
				}
				out[i] = resolved
			}
			return out, nil
		}
		return v, nil
	}

	return traverse(root)
}

func resolvePlaceholder(frames []frame.Frame, bodyStart int, h map[string]any, findex, count int, deserialize bool, reg *serialize.Registry, cfg Config) (any, error) {
	start := bodyStart + findex
	end := start + count
	if findex < 0 || count < 0 || start > len(frames) || end > len(frames) {
		return nil, fmt.Errorf("%w: placeholder references out-of-range frames [%d:%d) of %d", ErrMalformedEnvelope, start, end, len(frames))
	}
	payloadFrames := make([]frame.Frame, count)
	copy(payloadFrames, frames[start:end])
	for i := start; i < end; i++ {
		frames[i] = nil // release eagerly
	}

	deserializeKey, _ := h["deserialize"].(bool)
	if deserialize || deserializeKey {
		lengths, err := toIntSlice(h["lengths"])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		comp, err := toStringSlice(h["compression"])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		decompressed := make([]frame.Frame, len(payloadFrames))
		for i, f := range payloadFrames {
			if i < len(comp) && comp[i] != "" {
				out, err := compression.Decompress(comp[i], f)
				if err != nil {
					return nil, err
				}
				decompressed[i] = out
			} else {
				decompressed[i] = f
			}
		}
		merged, err := frame.Merge(lengths, decompressed)
		if err != nil {
			return nil, err
		}
		name, _ := h["serializer"].(string)
		return reg.DeserializeWith(name, cfg.AllowedSerializers, h, merged)
	}

	return &PreSerialized{Header: h, Frames: payloadFrames}, nil
}

// walkExtract collects payload markers found while descending mappings and
// sequences; scalars are left opaque. Map keys are visited in sorted order
// so the resulting body-frame layout is deterministic despite Go's
// randomized map iteration.
func walkExtract(v any, p path, state *extractState) any {
	switch t := v.(type) {
	case *Unserialized:
		if len(p) == 0 {
			state.rootMarkerU = t
			return nil
		}
		state.entries = append(state.entries, extraction{path: p, unserialized: t})
		if t.BytesOnly {
			state.bytesOnly[p.String()] = true
		}
		return map[string]any{} // overwritten by the patch pass
	case *PreSerialized:
		if len(p) == 0 {
			state.rootMarkerPre = t
			return nil
		}
		state.entries = append(state.entries, extraction{path: p, pre: t})
		return map[string]any{}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t[k] = walkExtract(t[k], p.withKey(k), state)
		}
		return t
	case []any:
		for i := range t {
			t[i] = walkExtract(t[i], p.withIndex(i), state)
		}
		return t
	default:
		return v
	}
}

func splitAll(frames []frame.Frame, threshold int) []frame.Frame {
	var out []frame.Frame
	for _, f := range frames {
		out = append(out, frame.Split(f, threshold)...)
	}
	return out
}

func asPlaceholder(m map[string]any) (h map[string]any, findex, count int, ok bool) {
	if len(m) != 3 {
		return nil, 0, 0, false
	}
	hv, hasHeader := m[headerKey]
	fi, hasFindex := m[findexKey]
	fc, hasFcount := m[fcountKey]
	if !hasHeader || !hasFindex || !hasFcount {
		return nil, 0, 0, false
	}
	h, ok = hv.(map[string]any)
	if !ok {
		return nil, 0, 0, false
	}
	findex, ok1 := toInt(fi)
	count, ok2 := toInt(fc)
	if !ok1 || !ok2 {
		return nil, 0, 0, false
	}
	return h, findex, count, true
}

func cloneHeader(h map[string]any) map[string]any {
	out := make(map[string]any, len(h)+4)
	for k, v := range h {
		out[k] = v
	}
	return out
}
