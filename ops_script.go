package ktasync

import (
	"context"

	"github.com/kyototycoon/ktasync-go/internal/proto"
	"github.com/kyototycoon/ktasync-go/internal/stream"
)

// PlayScript calls a Lua procedure registered with the server by name,
// passing recs as its (key, value) arguments. ok is false when FlagNoReply
// was set.
func (c *Client) PlayScript(ctx context.Context, name string, recs []ScriptRecord, flags uint32) (result []ScriptRecord, ok bool, err error) {
	noReply := flags&FlagNoReply != 0

	var decoded []ScriptRecord
	decode := func(s *stream.Stream) error {
		out, err := proto.DecodePlayScript(s)
		if err != nil {
			return err
		}
		decoded = out
		return nil
	}
	if noReply {
		decode = nil
	}

	err = c.do(ctx,
		func() ([]byte, error) { return proto.EncodePlayScript(name, recs, flags) },
		decode,
	)
	if err != nil {
		return nil, false, err
	}
	if noReply {
		return nil, false, nil
	}
	return decoded, true, nil
}
