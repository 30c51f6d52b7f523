package proto

import (
	"encoding/binary"

	"github.com/kyototycoon/ktasync-go/internal/ktserr"
)

// ByteReader is the read side of a Stream as seen by the codec: exact-length
// reads that block until satisfied or fail. internal/stream.Stream
// implements this.
type ByteReader interface {
	ReadFull(n int) ([]byte, error)
}

// DecodeCount decodes the shared set_bulk/remove_bulk response shape:
// "u8 magic == request_magic; u32 hit_count". want identifies which command
// this response is for, used both to validate the echoed magic and to
// label a protocol error.
func DecodeCount(r ByteReader, want Magic, command string) (uint32, error) {
	hdr, err := r.ReadFull(1 + 4)
	if err != nil {
		return 0, err
	}
	magic := Magic(hdr[0])
	switch magic {
	case want:
		return binary.BigEndian.Uint32(hdr[1:]), nil
	case Error:
		return 0, &ktserr.ProtocolError{Kind: ktserr.ServerError, Command: command}
	default:
		return 0, &ktserr.ProtocolError{Kind: ktserr.UnknownMagic, Command: command}
	}
}

// DecodeGetBulk decodes a get_bulk response using the coalesced-read
// optimization described in the protocol design: the first record's header
// cannot be read together with the response's magic+count prefix (the count
// is unknown before that read), but every subsequent record's header rides
// along with the previous record's payload in a single read, and the very
// last record needs only its payload (no trailing header to fetch). For
// n >= 1 records this performs n+1 record-level reads (first-header, n-1
// combined, one final-payload) after the initial 5-byte magic+count read.
func DecodeGetBulk(r ByteReader) ([]Record, error) {
	return decodeRecords(r, GetBulk, "get_bulk")
}

// DecodePlayScript decodes a play_script response. Its record layout omits
// db/expire, but the same coalesced-read shape applies with an 8-byte
// (klen, vlen) record header instead of get_bulk's 18-byte one.
func DecodePlayScript(r ByteReader) ([]ScriptRecord, error) {
	recs, err := decodeRecords(r, PlayScript, "play_script")
	if err != nil {
		return nil, err
	}
	out := make([]ScriptRecord, len(recs))
	for i, rec := range recs {
		out[i] = ScriptRecord{Key: rec.Key, Value: rec.Value}
	}
	return out, nil
}

// decodeRecords implements the coalesced-read loop shared by get_bulk
// (18-byte per-record header: db,klen,vlen,xt) and play_script (8-byte
// per-record header: klen,vlen, with db=0, xt=0 synthesized).
func decodeRecords(r ByteReader, want Magic, command string) ([]Record, error) {
	prefix, err := r.ReadFull(1 + 4)
	if err != nil {
		return nil, err
	}
	magic := Magic(prefix[0])
	switch magic {
	case want:
	case Error:
		return nil, &ktserr.ProtocolError{Kind: ktserr.ServerError, Command: command}
	default:
		return nil, &ktserr.ProtocolError{Kind: ktserr.UnknownMagic, Command: command}
	}

	n := binary.BigEndian.Uint32(prefix[1:])
	if n == 0 {
		return []Record{}, nil
	}

	recHdrLen := getBulkRespRecHdrLen
	if want == PlayScript {
		recHdrLen = playScriptRecHdrLen
	}

	hdr, err := r.ReadFull(recHdrLen)
	if err != nil {
		return nil, err
	}

	// payload aliases the Stream's reusable scratch buffer, which the next
	// ReadFull call overwrites; copyRec snapshots key/value into
	// record-owned memory before that happens, while the header tail
	// (parsed into scalars at the top of the next iteration, before any
	// further read) is safe to alias.
	recs := make([]Record, 0, n)
	for i := uint32(0); i < n-1; i++ {
		db, klen, vlen, xt := parseRecHdr(hdr, want)
		payload, err := r.ReadFull(int(klen) + int(vlen) + recHdrLen)
		if err != nil {
			return nil, err
		}
		recs = append(recs, copyRec(payload, klen, vlen, db, xt))
		hdr = payload[klen+vlen:]
	}

	db, klen, vlen, xt := parseRecHdr(hdr, want)
	payload, err := r.ReadFull(int(klen) + int(vlen))
	if err != nil {
		return nil, err
	}
	recs = append(recs, copyRec(payload, klen, vlen, db, xt))
	return recs, nil
}

// copyRec snapshots a record's key and value out of a buffer that the
// Stream may reuse or overwrite on the next read.
func copyRec(payload []byte, klen, vlen uint32, db uint16, xt int64) Record {
	key := make([]byte, klen)
	copy(key, payload[:klen])
	val := make([]byte, vlen)
	copy(val, payload[klen:klen+vlen])
	return Record{Key: key, Value: val, DB: db, Expire: xt}
}

// parseRecHdr reads either get_bulk's (db,klen,vlen,xt) header or
// play_script's (klen,vlen) header, synthesizing db=0/xt=0 for the latter.
func parseRecHdr(hdr []byte, want Magic) (db uint16, klen, vlen uint32, xt int64) {
	if want == PlayScript {
		klen = binary.BigEndian.Uint32(hdr[0:])
		vlen = binary.BigEndian.Uint32(hdr[4:])
		return 0, klen, vlen, 0
	}
	db = binary.BigEndian.Uint16(hdr[0:])
	klen = binary.BigEndian.Uint32(hdr[2:])
	vlen = binary.BigEndian.Uint32(hdr[6:])
	xt = int64(binary.BigEndian.Uint64(hdr[10:]))
	return
}
