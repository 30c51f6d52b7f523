// Package pool implements the bounded lease/return of Streams described in
// SPEC_FULL.md §4.C: a LIFO free stack guarded by a counting semaphore, the
// same shape as giantswarm-k8senv's core.Pool (free []*Instance, sem chan
// struct{} pre-filled with maxSize tokens) generalized to Kyoto Tycoon
// Streams.
package pool

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/kyototycoon/ktasync-go/internal/ktlog"
	"github.com/kyototycoon/ktasync-go/internal/stream"
)

// Pool leases and reclaims Streams against a fixed host:port, bounded by
// maxConnections concurrently leased Streams.
type Pool struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	free []*stream.Stream

	// sem is a counting semaphore: a buffered channel pre-filled with
	// maxConnections tokens. Lease takes one, Release always returns
	// exactly one.
	sem chan struct{}

	log *ktlog.Logger
}

// New returns a Pool dialing host:port on demand, never creating more than
// maxConnections concurrently leased Streams.
func New(host string, port int, maxConnections int, timeout time.Duration) *Pool {
	sem := make(chan struct{}, maxConnections)
	for i := 0; i < maxConnections; i++ {
		sem <- struct{}{}
	}
	return &Pool{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
		free:    make([]*stream.Stream, 0, maxConnections),
		sem:     sem,
		log:     ktlog.Default,
	}
}

// Lease blocks until a semaphore token is available (or ctx is done),
// then returns a free Stream if one exists, dialing a new one otherwise.
// The caller must call Release exactly once with the returned Stream.
func (p *Pool) Lease(ctx context.Context) (*stream.Stream, error) {
	select {
	case <-p.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	n := len(p.free)
	var s *stream.Stream
	if n > 0 {
		s = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if s != nil {
		return s, nil
	}

	s, err := stream.Dial(p.addr, p.timeout)
	if err != nil {
		// The token was taken but no Stream was produced: return it so the
		// semaphore invariant (no permits leaked) holds for the failed lease.
		p.sem <- struct{}{}
		return nil, err
	}
	return s, nil
}

// Release returns s's semaphore token unconditionally. When healthy is
// true, s is pushed back onto the free stack for reuse; otherwise it is
// closed and discarded, since a Stream that raised a protocol or I/O error
// can no longer be trusted to be frame-aligned.
func (p *Pool) Release(s *stream.Stream, healthy bool) {
	if healthy {
		p.mu.Lock()
		p.free = append(p.free, s)
		p.mu.Unlock()
	} else {
		p.log.Debugf("discarding stream to %s after protocol or I/O error", p.addr)
		_ = s.Close()
	}
	p.sem <- struct{}{}
}

// Free returns the number of idle Streams currently held, for tests that
// assert on the pool's connection-count bound (SPEC_FULL.md §8 invariant 2
// and property 7).
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Close closes every idle Stream and drops them from the free list. It does
// not affect Streams currently leased by in-flight callers.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, s := range p.free {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.free = nil
	return firstErr
}
