package ktasync

import (
	"context"
	"time"

	"github.com/kyototycoon/ktasync-go/internal/pool"
	"github.com/kyototycoon/ktasync-go/internal/stream"
)

// Client is an immutable (host, port, timeout, maxConnections) configuration
// plus the Pool it leases Streams from.
type Client struct {
	host           string
	port           int
	timeout        time.Duration
	maxConnections int
	pool           *pool.Pool
}

// Option configures a Client constructed by NewClient.
type Option func(*clientConfig)

type clientConfig struct {
	timeout        time.Duration
	maxConnections int
}

// WithTimeout sets the per-socket read/write deadline. Zero (the default)
// means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithMaxConnections bounds the number of concurrently leased Streams.
func WithMaxConnections(n int) Option {
	return func(c *clientConfig) { c.maxConnections = n }
}

// NewClient builds a Client against host:port. The Pool is created eagerly
// but dials Streams lazily, on first Lease.
func NewClient(host string, port int, opts ...Option) *Client {
	cfg := clientConfig{maxConnections: DefaultMaxConnections}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		host:           host,
		port:           port,
		timeout:        cfg.timeout,
		maxConnections: cfg.maxConnections,
		pool:           pool.New(host, port, cfg.maxConnections, cfg.timeout),
	}
}

// Close closes every idle Stream held by the pool. It does not wait for or
// interrupt in-flight operations.
func (c *Client) Close() error { return c.pool.Close() }

// FreeStreams reports the number of idle Streams currently held by the
// pool — exposed for tests asserting the connection-count bound
// (SPEC_FULL.md §8 invariant 2, property 7).
func (c *Client) FreeStreams() int { return c.pool.Free() }

// do leases a Stream, runs build to produce the request frame, writes it,
// and (if decode is non-nil) runs decode to parse the response. The Stream
// is released healthy when build fails before any bytes reach the wire, or
// when the whole round trip succeeds before ctx is cancelled; it is
// discarded on any write or decode failure, per the pool's
// framing-alignment invariant, and on cancellation — a Stream whose write
// or read was aborted mid-flight can no longer be trusted to be
// frame-aligned.
//
// ctx is only consulted by the pool while blocked on the semaphore in
// Lease; once a Stream is leased, WriteFrame/decode block on the socket
// with no ctx awareness of their own, so a watcher goroutine races ctx
// against the round trip and closes the Stream's connection to unblock it
// — the standard way to make a blocking net.Conn operation cancelable in
// Go.
func (c *Client) do(ctx context.Context, build func() ([]byte, error), decode func(*stream.Stream) error) error {
	s, err := c.pool.Lease(ctx)
	if err != nil {
		return err
	}
	healthy := false
	defer func() { c.pool.Release(s, healthy) }()

	buf, err := build()
	if err != nil {
		healthy = true // nothing was written; the Stream is still good
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()

	if err := s.WriteFrame(buf); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	if decode != nil {
		if err := decode(s); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	healthy = true
	return nil
}
