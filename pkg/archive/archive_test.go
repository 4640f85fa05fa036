package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/distcore/pkg/frame"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordReplayRoundTrip(t *testing.T) {
	s := openTestStore(t)
	frames := []frame.Frame{[]byte("header"), []byte("payload"), []byte("body frame")}

	require.NoError(t, s.Record("msg-1", frames))

	got, err := s.Replay("msg-1")
	require.NoError(t, err)
	assert.Equal(t, frames, got)
}

func TestRecordOverwritesExistingID(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record("msg-1", []frame.Frame{[]byte("first")}))
	require.NoError(t, s.Record("msg-1", []frame.Frame{[]byte("second"), []byte("third")}))

	got, err := s.Replay("msg-1")
	require.NoError(t, err)
	assert.Equal(t, []frame.Frame{[]byte("second"), []byte("third")}, got)
}

func TestReplayMissingIDFails(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Replay("nope")
	assert.ErrorIs(t, err, ErrRecordingNotFound)
}

func TestDeleteRemovesRecording(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record("msg-1", []frame.Frame{[]byte("x")}))
	require.NoError(t, s.Delete("msg-1"))

	_, err := s.Replay("msg-1")
	assert.ErrorIs(t, err, ErrRecordingNotFound)
}

func TestDeleteMissingIDIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Delete("nope"))
}

func TestListReturnsAllRecordedIDs(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record("a", []frame.Frame{[]byte("1")}))
	require.NoError(t, s.Record("b", []frame.Frame{[]byte("2")}))

	ids, err := s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRecordReplayHandlesEmptyFrames(t *testing.T) {
	s := openTestStore(t)
	frames := []frame.Frame{{}, []byte("x"), {}}

	require.NoError(t, s.Record("msg-empty", frames))
	got, err := s.Replay("msg-empty")
	require.NoError(t, err)
	assert.Equal(t, frames, got)
}
