// Package archive is a demo recorder/replayer for envelope.Dumps output:
// it stores a frame sequence under a message id and can replay it later.
package archive

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aeolun/distcore/pkg/frame"
)

// ErrRecordingNotFound indicates no recording exists under the given id.
var ErrRecordingNotFound = errors.New("archive: recording not found")

// Store wraps the SQLite database holding recorded frame sequences.
type Store struct {
	conn      *sql.DB // read pool
	writeConn *sql.DB // dedicated single write connection
}

// Open opens (creating if needed) the SQLite database at path. A read pool
// is kept separate from a dedicated single write connection so concurrent
// Replay calls never block on a Record in progress.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := applyPragmas(conn); err != nil {
		conn.Close()
		return nil, err
	}

	writeConn, err := sql.Open("sqlite", path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("archive: open write connection: %w", err)
	}
	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)
	writeConn.SetConnMaxLifetime(0)

	if err := applyPragmas(writeConn); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, err
	}

	store := &Store{conn: conn, writeConn: writeConn}
	if err := store.initSchema(); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, err
	}
	return store, nil
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("archive: %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	_, err := s.writeConn.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			message_id  TEXT PRIMARY KEY,
			recorded_at INTEGER NOT NULL,
			frame_count INTEGER NOT NULL,
			payload     BLOB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("archive: init schema: %w", err)
	}
	return nil
}

// Close closes both connections.
func (s *Store) Close() error {
	werr := s.writeConn.Close()
	rerr := s.conn.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Record stores frames under messageID, replacing any prior recording with
// the same id.
func (s *Store) Record(messageID string, frames []frame.Frame) error {
	payload := encodeFrames(frames)
	_, err := s.writeConn.Exec(
		`INSERT INTO recordings (message_id, recorded_at, frame_count, payload)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET
		   recorded_at = excluded.recorded_at,
		   frame_count = excluded.frame_count,
		   payload = excluded.payload`,
		messageID, time.Now().UnixNano(), len(frames), payload,
	)
	if err != nil {
		return fmt.Errorf("archive: record %q: %w", messageID, err)
	}
	return nil
}

// Replay retrieves the frames previously recorded under messageID.
func (s *Store) Replay(messageID string) ([]frame.Frame, error) {
	var payload []byte
	err := s.conn.QueryRow(
		`SELECT payload FROM recordings WHERE message_id = ?`, messageID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: replay %q: %w", messageID, err)
	}
	return decodeFrames(payload)
}

// Delete removes a recording. It is not an error to delete a missing id.
func (s *Store) Delete(messageID string) error {
	_, err := s.writeConn.Exec(`DELETE FROM recordings WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("archive: delete %q: %w", messageID, err)
	}
	return nil
}

// List returns every recorded message id, most recently recorded first.
func (s *Store) List() ([]string, error) {
	rows, err := s.conn.Query(`SELECT message_id FROM recordings ORDER BY recorded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("archive: list scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// encodeFrames packs frames as [count(4)]{[len(4)][data]}*, big-endian: the
// frame-count and per-frame length layout of pkg/gateway's wire format,
// without its leading version and type bytes.
func encodeFrames(frames []frame.Frame) []byte {
	size := 4
	for _, f := range frames {
		size += 4 + len(f)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[:4], uint32(len(frames)))
	off := 4
	for _, f := range frames {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(f)))
		off += 4
		copy(buf[off:], f)
		off += len(f)
	}
	return buf
}

func decodeFrames(buf []byte) ([]frame.Frame, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("archive: payload too short")
	}
	count := binary.BigEndian.Uint32(buf[:4])
	off := 4
	frames := make([]frame.Frame, count)
	for i := range frames {
		if off+4 > len(buf) {
			return nil, fmt.Errorf("archive: truncated payload")
		}
		n := binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
		if off+int(n) > len(buf) {
			return nil, fmt.Errorf("archive: truncated payload")
		}
		frames[i] = frame.Frame(buf[off : off+int(n)])
		off += int(n)
	}
	return frames, nil
}
