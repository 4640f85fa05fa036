package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/distcore/pkg/frame"
)

func TestRawFamilyRoundTrip(t *testing.T) {
	r := NewRegistry()
	name, h, frames, err := r.Dispatch([]string{"raw"}, []byte("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, "raw", name)

	v, err := r.DeserializeWith(name, nil, h, frames)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestRawFamilyDeserializeConcatenatesChunks(t *testing.T) {
	r := NewRegistry()
	chunks := []frame.Frame{[]byte("split "), []byte("into "), []byte("three")}

	v, err := r.DeserializeWith("raw", nil, Header{}, chunks)
	require.NoError(t, err)
	assert.Equal(t, []byte("split into three"), v)
}

func TestGobFamilyRoundTrip(t *testing.T) {
	r := NewRegistry()
	name, h, frames, err := r.Dispatch([]string{"raw", "gob"}, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, "gob", name) // raw declines a non-[]byte value

	v, err := r.DeserializeWith(name, nil, h, frames)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDispatchSkipsUnknownFamilies(t *testing.T) {
	r := NewRegistry()
	name, _, _, err := r.Dispatch([]string{"nonexistent", "gob"}, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "gob", name)
}

func TestDispatchFailsWhenNoneAccept(t *testing.T) {
	r := NewRegistry()
	_, _, _, err := r.Dispatch([]string{"raw"}, 42, nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestDeserializeWithRespectsAllowList(t *testing.T) {
	r := NewRegistry()
	_, h, frames, err := r.Dispatch([]string{"gob"}, "hi", nil)
	require.NoError(t, err)

	_, err = r.DeserializeWith("gob", []string{"raw"}, h, frames)
	assert.ErrorIs(t, err, ErrDisallowedSerializer)
}

func TestDeserializeWithEmptyAllowListAcceptsAnyRegisteredFamily(t *testing.T) {
	r := NewRegistry()
	_, h, frames, err := r.Dispatch([]string{"gob"}, "hi", nil)
	require.NoError(t, err)

	v, err := r.DeserializeWith("gob", nil, h, frames)
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

func TestDiagnosticPayloadRoundTrip(t *testing.T) {
	r := NewRegistry()
	h, frames := DiagnosticPayload("boom: couldn't serialize .foo.bar")
	v, err := r.DeserializeWith("error", nil, h, frames)
	require.NoError(t, err)
	assert.Equal(t, "boom: couldn't serialize .foo.bar", v)
}

func TestRegisterCustomFamily(t *testing.T) {
	r := NewRegistry()
	r.Register(Family{
		Name:    "upper",
		Accepts: func(v any) bool { _, ok := v.(string); return ok },
		Serialize: func(v any, _ map[string]any) (Header, []frame.Frame, error) {
			return Header{}, []frame.Frame{frame.Frame(v.(string))}, nil
		},
		Deserialize: func(_ Header, frames []frame.Frame) (any, error) {
			return string(frames[0]), nil
		},
	})

	name, h, frames, err := r.Dispatch([]string{"upper"}, "shout", nil)
	require.NoError(t, err)
	assert.Equal(t, "upper", name)

	v, err := r.DeserializeWith(name, nil, h, frames)
	require.NoError(t, err)
	assert.Equal(t, "shout", v)
}
