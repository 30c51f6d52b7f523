package ktasync

import "github.com/kyototycoon/ktasync-go/internal/proto"

// Record is a full database record as returned by GetBulk: its key, value,
// the logical database it lives in, and its absolute expiration timestamp.
type Record = proto.Record

// SetRecord is one input record for SetBulk.
type SetRecord = proto.SetRecord

// KeyDB is one input item for GetBulk/RemoveBulk: a key scoped to a logical
// database.
type KeyDB = proto.KeyDB

// ScriptRecord is one key/value pair passed to, or returned from,
// PlayScript. A script record carries no db or expire.
type ScriptRecord = proto.ScriptRecord
