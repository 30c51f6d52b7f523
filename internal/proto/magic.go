// Package proto implements the Kyoto Tycoon binary protocol: request frame
// encoding and response decoding for set_bulk, get_bulk, remove_bulk, and
// play_script. All integers on the wire are big-endian.
package proto

// Magic identifies a request command or the error response.
type Magic byte

const (
	SetBulk    Magic = 0xB8
	RemoveBulk Magic = 0xB9
	GetBulk    Magic = 0xBA
	PlayScript Magic = 0xB4
	Error      Magic = 0xBF
)

// FlagNoReply suppresses the server's response (and, on the client side,
// the read that would otherwise follow a mutating command).
const FlagNoReply uint32 = 0x01

// DefaultExpire is the sentinel expiration meaning "never expire".
const DefaultExpire int64 = 0x7FFFFFFFFFFFFFFF

const (
	// headerLen is magic(1) + flags(4) + count(4).
	headerLen = 1 + 4 + 4
	// setBulkRecHdrLen is db(2) + klen(4) + vlen(4) + xt(8), excluding key/value.
	setBulkRecHdrLen = 2 + 4 + 4 + 8
	// getRemoveRecHdrLen is db(2) + klen(4), excluding key.
	getRemoveRecHdrLen = 2 + 4
	// getBulkRespRecHdrLen is db(2) + klen(4) + vlen(4) + xt(8), the coalesced
	// read unit for get_bulk records.
	getBulkRespRecHdrLen = 2 + 4 + 4 + 8
	// playScriptRecHdrLen is klen(4) + vlen(4), the coalesced read unit for
	// play_script records (no db/xt on this command).
	playScriptRecHdrLen = 4 + 4
)
