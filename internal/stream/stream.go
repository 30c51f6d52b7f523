// Package stream provides Stream, a duplex buffered byte pipe over one TCP
// connection. Stream knows nothing about the Kyoto Tycoon wire format; that
// is internal/proto's job. It only guarantees read_exactly semantics and
// atomic whole-buffer writes.
package stream

import (
	"io"
	"net"
	"time"

	sbufio "github.com/sagernet/sing/common/bufio"

	"github.com/kyototycoon/ktasync-go/internal/ktserr"
)

// Stream owns one net.Conn and pairs it with a buffered reader. Writes go
// through the connection's vectorised-write path when the underlying conn
// supports it (the same capability detection the teacher's sendLoop uses),
// falling back to a plain Write otherwise.
type Stream struct {
	conn    net.Conn
	r       *readFull
	vw      sbufio.VectorisedWriter
	vwOK    bool
	timeout time.Duration
}

// Dial opens a new TCP connection to addr and wraps it in a Stream. timeout,
// if non-zero, is applied to both read and write deadlines ahead of every
// operation (the library's only notion of a socket timeout — see
// SPEC_FULL.md §5, "no per-request higher-level deadline").
func Dial(addr string, timeout time.Duration) (*Stream, error) {
	var conn net.Conn
	var err error
	if timeout > 0 {
		conn, err = net.DialTimeout("tcp", addr, timeout)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, ktserr.NewConnectionError("dial", err)
	}
	return New(conn, timeout), nil
}

// New wraps an already-open net.Conn in a Stream.
func New(conn net.Conn, timeout time.Duration) *Stream {
	vw, ok := sbufio.CreateVectorisedWriter(conn)
	return &Stream{
		conn:    conn,
		r:       newReadFull(conn),
		vw:      vw,
		vwOK:    ok,
		timeout: timeout,
	}
}

// ReadFull blocks until exactly n bytes are available and returns them, or
// fails with a ConnectionError. The returned slice is only valid until the
// next call to ReadFull.
func (s *Stream) ReadFull(n int) ([]byte, error) {
	if s.timeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return nil, ktserr.NewConnectionError("set read deadline", err)
		}
	}
	b, err := s.r.readFull(n)
	if err != nil {
		return nil, ktserr.NewConnectionError("read", err)
	}
	return b, nil
}

// WriteFrame writes buf as a single request frame. buf is already one
// contiguous byte slice per the codec's encoding contract; WriteFrame still
// routes it through the vectorised-write path (a single-element vector) when
// available, matching the teacher's writev-backed sendLoop.
func (s *Stream) WriteFrame(buf []byte) error {
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return ktserr.NewConnectionError("set write deadline", err)
		}
	}
	var err error
	if s.vwOK {
		_, err = sbufio.WriteVectorised(s.vw, [][]byte{buf})
	} else {
		_, err = s.conn.Write(buf)
	}
	if err != nil {
		return ktserr.NewConnectionError("write", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Stream) Close() error { return s.conn.Close() }

// LocalAddr and RemoteAddr pass through to the underlying connection,
// mirroring the teacher's Session passthrough methods.
func (s *Stream) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// readFull adapts a plain io.Reader to the exact-length-read contract using
// a small reusable scratch buffer, avoiding an allocation per call for the
// common small-header case.
type readFull struct {
	src io.Reader
	buf []byte
}

func newReadFull(src io.Reader) *readFull {
	return &readFull{src: src, buf: make([]byte, 4096)}
}

func (r *readFull) readFull(n int) ([]byte, error) {
	if n > len(r.buf) {
		r.buf = make([]byte, n)
	}
	b := r.buf[:n]
	if _, err := io.ReadFull(r.src, b); err != nil {
		return nil, err
	}
	return b, nil
}
