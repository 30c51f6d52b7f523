package ktasync

import (
	"context"

	"github.com/kyototycoon/ktasync-go/internal/proto"
	"github.com/kyototycoon/ktasync-go/internal/stream"
)

// Remove deletes a single record. It wraps RemoveBulk with a one-element
// sequence.
func (c *Client) Remove(ctx context.Context, key []byte, opts ...ReqOption) (count int64, ok bool, err error) {
	o := applyReqOpts(opts)
	return c.RemoveBulk(ctx, []KeyDB{{Key: key, DB: o.db}}, o.flags)
}

// RemoveBulkKeys deletes multiple keys from one db.
func (c *Client) RemoveBulkKeys(ctx context.Context, keys [][]byte, opts ...ReqOption) (count int64, ok bool, err error) {
	o := applyReqOpts(opts)
	items := make([]KeyDB, len(keys))
	for i, k := range keys {
		items[i] = KeyDB{Key: k, DB: o.db}
	}
	return c.RemoveBulk(ctx, items, o.flags)
}

// RemoveBulk deletes every (key, db) item in items in a single request.
func (c *Client) RemoveBulk(ctx context.Context, items []KeyDB, flags uint32) (count int64, ok bool, err error) {
	noReply := flags&FlagNoReply != 0

	var decoded uint32
	decode := func(s *stream.Stream) error {
		n, err := proto.DecodeCount(s, proto.RemoveBulk, "remove_bulk")
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
		func() ([]byte, error) { return proto.EncodeRemoveBulk(items, flags) },
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
