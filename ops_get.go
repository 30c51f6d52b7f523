package ktasync

import (
	"context"

	"github.com/kyototycoon/ktasync-go/internal/proto"
	"github.com/kyototycoon/ktasync-go/internal/stream"
)

// Get retrieves a single record's value. found is false if the server
// returned zero records for this key.
func (c *Client) Get(ctx context.Context, key []byte, opts ...ReqOption) (val []byte, found bool, err error) {
	o := applyReqOpts(opts)
	recs, err := c.GetBulk(ctx, []KeyDB{{Key: key, DB: o.db}})
	if err != nil {
		return nil, false, err
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return recs[0].Value, true, nil
}

// GetBulkKeys retrieves multiple keys from one db, returning a mapping from
// key to value. Missing keys are simply absent from the result; on the (by
// contract impossible, since the server never returns the same key twice in
// one response) event of a duplicate key, last write wins.
func (c *Client) GetBulkKeys(ctx context.Context, keys [][]byte, opts ...ReqOption) (map[string][]byte, error) {
	o := applyReqOpts(opts)
	items := make([]KeyDB, len(keys))
	for i, k := range keys {
		items[i] = KeyDB{Key: k, DB: o.db}
	}
	recs, err := c.GetBulk(ctx, items)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(recs))
	for _, r := range recs {
		out[string(r.Key)] = r.Value
	}
	return out, nil
}

// GetBulk retrieves every (key, db) item in items in a single request. An
// empty items is a valid request with n=0.
func (c *Client) GetBulk(ctx context.Context, items []KeyDB) ([]Record, error) {
	var recs []Record
	err := c.do(ctx,
		func() ([]byte, error) { return proto.EncodeGetBulk(items, 0) },
		func(s *stream.Stream) error {
			var err error
			recs, err = proto.DecodeGetBulk(s)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return recs, nil
}
