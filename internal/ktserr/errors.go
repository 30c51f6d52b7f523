// Package ktserr defines the typed error kinds surfaced by the client and
// the embedded supervisor.
package ktserr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ProtoErrKind distinguishes the two protocol-level failure shapes the wire
// format can report.
type ProtoErrKind int

const (
	// ServerError means the server replied with the MBError magic.
	ServerError ProtoErrKind = iota
	// UnknownMagic means the server replied with a magic byte this client
	// does not recognize for the command just sent.
	UnknownMagic
)

func (k ProtoErrKind) String() string {
	switch k {
	case ServerError:
		return "server error"
	case UnknownMagic:
		return "unknown magic"
	default:
		return "unknown kind"
	}
}

// InvalidInput is raised before any bytes touch the wire: the caller passed
// a key, value or script name too long for the protocol's u32 length field.
type InvalidInput struct {
	Field  string
	Reason string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("ktasync: invalid input %s: %s", e.Field, e.Reason)
}

// ConnectionError wraps a socket open/read/write failure. The Stream that
// raised it must be discarded, never returned to the pool's free list.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ktasync: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err with pkg/errors so that call sites accumulate
// a stack trace and still unwrap cleanly to the original net/io error.
func NewConnectionError(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: errors.Wrap(err, op)}
}

// ProtocolError means the server's response did not match the expected
// shape for the command that was sent. The leased Stream is discarded.
type ProtocolError struct {
	Kind    ProtoErrKind
	Command string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ktasync: protocol error on %s: %s", e.Command, e.Kind)
}

// EmbeddedStartupError means the embedded supervisor could not allocate a
// port or connect to the child ktserver after its bounded retry budget.
type EmbeddedStartupError struct {
	Reason string
}

func (e *EmbeddedStartupError) Error() string {
	return fmt.Sprintf("ktasync: embedded server did not start: %s", e.Reason)
}
