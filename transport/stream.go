// Package transport provides the concrete websocket-backed
// implementation of session.Stream, plus the per-connection read loop
// that drives a session.Connection. Styled on the mutex-guarded
// send / idempotent close shape the teacher's peer-connection code
// used for its TCP links.
package transport

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tolelom/cardtable/session"
)

// WSStream adapts a *websocket.Conn to session.Stream. Writes are
// serialized with a mutex since gorilla/websocket forbids concurrent
// writers on one connection, and broadcast fan-out can call Send from
// the lock-holding GameHandler while the connection's own read loop is
// blocked in ReadMessage concurrently.
type WSStream struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWSStream wraps conn.
func NewWSStream(conn *websocket.Conn) *WSStream {
	return &WSStream{conn: conn}
}

// Send implements session.Stream.
func (s *WSStream) Send(frame any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close implements session.Stream. Idempotent: closing an
// already-closed stream is a no-op, since both a failed broadcast and
// the connection's own read-loop exit can race to close it.
func (s *WSStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Serve drives conn's read loop: each inbound text frame is decoded
// and handed to c.Dispatch, one at a time, until the socket closes or
// a read fails (spec §5: one task per connection, no intra-request
// pipelining). A frame that does not decode as JSON is dropped
// without a reply. On return the caller's defer should release the
// connection's game presence via c.Close().
func Serve(conn *websocket.Conn, c *session.Connection) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in session.InFrame
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		c.Dispatch(in)
	}
}
