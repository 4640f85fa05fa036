package gateway

import (
	"bytes"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// SafeConn wraps a *websocket.Conn with write synchronization: multiple
// goroutines (the relay loop and a caller pushing a fresh message) must
// never interleave their writes on the same connection.
type SafeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewSafeConn wraps conn with write synchronization.
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// SendMessage writes m as a single binary websocket message, with the write
// mutex held. It is the only way to write to the connection; the raw
// *websocket.Conn is private.
func (sc *SafeConn) SendMessage(m WireMessage) error {
	var buf bytes.Buffer
	if err := EncodeWireMessage(&buf, m); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

// ReadMessage reads one WireMessage. Reads need no synchronization: gorilla's
// *websocket.Conn forbids concurrent reads, but this package only ever reads
// from one goroutine per connection.
func (sc *SafeConn) ReadMessage() (*WireMessage, error) {
	_, data, err := sc.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return DecodeWireMessage(bytes.NewReader(data))
}

// Close closes the underlying connection.
func (sc *SafeConn) Close() error {
	return sc.conn.Close()
}

// RemoteAddr returns the remote network address.
func (sc *SafeConn) RemoteAddr() net.Addr {
	return sc.conn.RemoteAddr()
}
