package proto

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kyototycoon/ktasync-go/internal/ktserr"
)

// checkLen rejects keys/values that would overflow the protocol's u32
// length fields. This is the Go analogue of the source's "key/value must be
// bytes" assertion: here the type system already guarantees byte-ness, so
// the only remaining invariant to enforce is the length bound.
func checkLen(field string, b []byte) error {
	if len(b) > math.MaxUint32 {
		return &ktserr.InvalidInput{Field: field, Reason: fmt.Sprintf("length %d exceeds uint32", len(b))}
	}
	return nil
}

// EncodeSetBulk builds one contiguous set_bulk request frame.
func EncodeSetBulk(recs []SetRecord, flags uint32) ([]byte, error) {
	size := headerLen
	for i := range recs {
		if err := checkLen("key", recs[i].Key); err != nil {
			return nil, err
		}
		if err := checkLen("value", recs[i].Value); err != nil {
			return nil, err
		}
		size += setBulkRecHdrLen + len(recs[i].Key) + len(recs[i].Value)
	}

	buf := make([]byte, size)
	off := putHeader(buf, SetBulk, flags, uint32(len(recs)))
	for i := range recs {
		r := &recs[i]
		binary.BigEndian.PutUint16(buf[off:], r.DB)
		off += 2
		binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Key)))
		off += 4
		binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Value)))
		off += 4
		binary.BigEndian.PutUint64(buf[off:], uint64(r.Expire))
		off += 8
		off += copy(buf[off:], r.Key)
		off += copy(buf[off:], r.Value)
	}
	return buf, nil
}

// EncodeGetBulk builds one contiguous get_bulk request frame.
func EncodeGetBulk(items []KeyDB, flags uint32) ([]byte, error) {
	size := headerLen
	for i := range items {
		if err := checkLen("key", items[i].Key); err != nil {
			return nil, err
		}
		size += getRemoveRecHdrLen + len(items[i].Key)
	}

	buf := make([]byte, size)
	off := putHeader(buf, GetBulk, flags, uint32(len(items)))
	for i := range items {
		it := &items[i]
		binary.BigEndian.PutUint16(buf[off:], it.DB)
		off += 2
		binary.BigEndian.PutUint32(buf[off:], uint32(len(it.Key)))
		off += 4
		off += copy(buf[off:], it.Key)
	}
	return buf, nil
}

// EncodeRemoveBulk builds one contiguous remove_bulk request frame. The
// wire layout is identical to get_bulk's request side.
func EncodeRemoveBulk(items []KeyDB, flags uint32) ([]byte, error) {
	size := headerLen
	for i := range items {
		if err := checkLen("key", items[i].Key); err != nil {
			return nil, err
		}
		size += getRemoveRecHdrLen + len(items[i].Key)
	}

	buf := make([]byte, size)
	off := putHeader(buf, RemoveBulk, flags, uint32(len(items)))
	for i := range items {
		it := &items[i]
		binary.BigEndian.PutUint16(buf[off:], it.DB)
		off += 2
		binary.BigEndian.PutUint32(buf[off:], uint32(len(it.Key)))
		off += 4
		off += copy(buf[off:], it.Key)
	}
	return buf, nil
}

// EncodePlayScript builds one contiguous play_script request frame. Unlike
// the other three commands its header carries the script name between the
// flags and the record count.
func EncodePlayScript(name string, recs []ScriptRecord, flags uint32) ([]byte, error) {
	nameBytes := []byte(name)
	if err := checkLen("name", nameBytes); err != nil {
		return nil, err
	}

	size := 1 + 4 + 4 + len(nameBytes) + 4
	for i := range recs {
		if err := checkLen("key", recs[i].Key); err != nil {
			return nil, err
		}
		if err := checkLen("value", recs[i].Value); err != nil {
			return nil, err
		}
		size += playScriptRecHdrLen + len(recs[i].Key) + len(recs[i].Value)
	}

	buf := make([]byte, size)
	off := 0
	buf[off] = byte(PlayScript)
	off++
	binary.BigEndian.PutUint32(buf[off:], flags)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(len(nameBytes)))
	off += 4
	off += copy(buf[off:], nameBytes)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(recs)))
	off += 4
	for i := range recs {
		r := &recs[i]
		binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Key)))
		off += 4
		binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Value)))
		off += 4
		off += copy(buf[off:], r.Key)
		off += copy(buf[off:], r.Value)
	}
	return buf, nil
}

// putHeader writes the common "u8 magic; u32 flags; u32 n" prefix shared by
// set_bulk, get_bulk, and remove_bulk, returning the offset of the first
// byte after it.
func putHeader(buf []byte, m Magic, flags, n uint32) int {
	buf[0] = byte(m)
	binary.BigEndian.PutUint32(buf[1:], flags)
	binary.BigEndian.PutUint32(buf[5:], n)
	return headerLen
}
