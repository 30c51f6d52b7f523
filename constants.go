// Package ktasync implements a Kyoto Tycoon binary-protocol client with I/O
// batching and a bounded connection pool: many in-flight logical requests
// share a small number of persistent sockets.
package ktasync

import "github.com/kyototycoon/ktasync-go/internal/proto"

// Wire command magics, re-exported for callers that want to recognize them
// (e.g. in a custom transport wrapper or test double).
const (
	MBSetBulk    = byte(proto.SetBulk)
	MBRemoveBulk = byte(proto.RemoveBulk)
	MBGetBulk    = byte(proto.GetBulk)
	MBPlayScript = byte(proto.PlayScript)
	MBError      = byte(proto.Error)
)

// Defaults and protocol-level constants.
const (
	DefaultHost = "localhost"
	DefaultPort = 1978

	// DefaultExpire is the sentinel expiration meaning "never expire".
	DefaultExpire = proto.DefaultExpire

	// FlagNoReply suppresses the server's response to a mutating command.
	FlagNoReply = proto.FlagNoReply

	DefaultMaxConnections = 4

	RangeFrom = 0x4000
	RangeTo   = 0x7FFF
)
