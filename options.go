package ktasync

// reqOpts carries the per-call knobs (db, expire, flags) shared by the
// Set/Get/Remove wrapper operations. Not every field applies to every
// operation — e.g. Get and GetBulkKeys ignore expire and flags — callers
// just set what's relevant.
type reqOpts struct {
	db     uint16
	expire int64
	flags  uint32
}

func defaultReqOpts() reqOpts {
	return reqOpts{expire: DefaultExpire}
}

// ReqOption configures a single Set/Get/Remove call.
type ReqOption func(*reqOpts)

// WithDB selects the logical database the operation applies to. Default 0.
func WithDB(db uint16) ReqOption {
	return func(o *reqOpts) { o.db = db }
}

// WithExpire sets the absolute expiration timestamp for a Set operation.
// Default DefaultExpire ("never").
func WithExpire(expire int64) ReqOption {
	return func(o *reqOpts) { o.expire = expire }
}

// WithFlags sets the request flag bits, e.g. FlagNoReply. Default 0.
func WithFlags(flags uint32) ReqOption {
	return func(o *reqOpts) { o.flags = flags }
}

func applyReqOpts(opts []ReqOption) reqOpts {
	o := defaultReqOpts()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
