package envelope

import "github.com/aeolun/distcore/pkg/frame"

// Unserialized carries a user object that must be passed through the
// serializer dispatch (pkg/serialize) before transmission. BytesOnly hints
// that loads should re-materialize this payload even when the caller asked
// for the bulk "deserialize=false" passthrough mode.
type Unserialized struct {
	Value     any
	BytesOnly bool
}

// PreSerialized carries a header and frames already produced by the
// serializer dispatch, ready to ship as-is.
type PreSerialized struct {
	Header map[string]any
	Frames []frame.Frame
}
