package ktasync

import (
	"context"

	"github.com/kyototycoon/ktasync-go/internal/proto"
	"github.com/kyototycoon/ktasync-go/internal/stream"
)

// Set stores a single record. It wraps SetBulk with a one-element sequence.
// ok is false when FlagNoReply was set (no response was read).
func (c *Client) Set(ctx context.Context, key, val []byte, opts ...ReqOption) (count int64, ok bool, err error) {
	o := applyReqOpts(opts)
	return c.SetBulk(ctx, []SetRecord{{Key: key, Value: val, DB: o.db, Expire: o.expire}}, o.flags)
}

// SetBulkKV stores kv as a batch of records sharing one db and expire,
// materializing (k, v, db, expire) records from the map. Go map iteration
// order is undefined, which is fine: the server treats set_bulk as an
// unordered batch.
func (c *Client) SetBulkKV(ctx context.Context, kv map[string][]byte, opts ...ReqOption) (count int64, ok bool, err error) {
	o := applyReqOpts(opts)
	recs := make([]SetRecord, 0, len(kv))
	for k, v := range kv {
		recs = append(recs, SetRecord{Key: []byte(k), Value: v, DB: o.db, Expire: o.expire})
	}
	return c.SetBulk(ctx, recs, o.flags)
}

// SetBulk stores every record in recs in a single request. An empty recs is
// a valid request with n=0; it is sent, not short-circuited.
func (c *Client) SetBulk(ctx context.Context, recs []SetRecord, flags uint32) (count int64, ok bool, err error) {
	noReply := flags&FlagNoReply != 0

	var decoded uint32
	decode := func(s *stream.Stream) error {
		n, err := proto.DecodeCount(s, proto.SetBulk, "set_bulk")
		if err != nil {
			return err
		}
		decoded = n
		return nil
	}
	if noReply {
		decode = nil
	}

	err = c.do(ctx,
		func() ([]byte, error) { return proto.EncodeSetBulk(recs, flags) },
		decode,
	)
	if err != nil {
		return 0, false, err
	}
	if noReply {
		return 0, false, nil
	}
	return int64(decoded), true, nil
}
