package pool_test

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/kyototycoon/ktasync-go/internal/pool"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// listen starts a throwaway TCP listener that accepts and holds connections
// open (referenced, so they are not finalizer-closed), so Pool.Lease has
// somewhere real to Dial against.
func listen() (addr string, closeFn func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	var mu sync.Mutex
	var accepted []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			accepted = append(accepted, c)
			mu.Unlock()
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	return net.JoinHostPort(host, portStr), func() {
		_ = ln.Close()
		mu.Lock()
		for _, c := range accepted {
			_ = c.Close()
		}
		mu.Unlock()
	}
}

var _ = Describe("Pool", func() {
	var closeListener func()
	var addr string

	BeforeEach(func() {
		addr, closeListener = listen()
	})

	AfterEach(func() {
		closeListener()
	})

	It("never holds more than maxConnections leased Streams at once", func() {
		host, portStr, _ := net.SplitHostPort(addr)
		port, err := strconv.Atoi(portStr)
		Expect(err).NotTo(HaveOccurred())
		p := pool.New(host, port, 2, time.Second)
		defer p.Close()

		ctx := context.Background()
		s1, err := p.Lease(ctx)
		Expect(err).NotTo(HaveOccurred())
		s2, err := p.Lease(ctx)
		Expect(err).NotTo(HaveOccurred())

		leaseCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = p.Lease(leaseCtx)
		Expect(err).To(HaveOccurred())

		p.Release(s1, true)
		p.Release(s2, true)
	})

	It("reuses a released healthy Stream instead of dialing a new one", func() {
		host, portStr, _ := net.SplitHostPort(addr)
		port, err := strconv.Atoi(portStr)
		Expect(err).NotTo(HaveOccurred())
		p := pool.New(host, port, 1, time.Second)
		defer p.Close()

		ctx := context.Background()
		s1, err := p.Lease(ctx)
		Expect(err).NotTo(HaveOccurred())
		p.Release(s1, true)
		Expect(p.Free()).To(Equal(1))

		s2, err := p.Lease(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(s2).To(BeIdenticalTo(s1))
		Expect(p.Free()).To(Equal(0))
		p.Release(s2, true)
	})

	It("closes and discards an unhealthy Stream instead of returning it to the free stack", func() {
		host, portStr, _ := net.SplitHostPort(addr)
		port, err := strconv.Atoi(portStr)
		Expect(err).NotTo(HaveOccurred())
		p := pool.New(host, port, 1, time.Second)
		defer p.Close()

		ctx := context.Background()
		s1, err := p.Lease(ctx)
		Expect(err).NotTo(HaveOccurred())
		p.Release(s1, false)
		Expect(p.Free()).To(Equal(0))

		s2, err := p.Lease(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(s2).NotTo(BeIdenticalTo(s1))
		p.Release(s2, true)
	})

	It("returns the semaphore token even when Lease's dial fails", func() {
		closeListener()
		host, portStr, _ := net.SplitHostPort(addr)
		port, err := strconv.Atoi(portStr)
		Expect(err).NotTo(HaveOccurred())
		p := pool.New(host, port, 1, 100*time.Millisecond)
		defer p.Close()

		ctx := context.Background()
		_, err = p.Lease(ctx)
		Expect(err).To(HaveOccurred())

		leaseCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = p.Lease(leaseCtx)
		// A leaked permit would make this block until leaseCtx's deadline with
		// a context-deadline error; a dial failure against the closed
		// listener surfaces its own connection error well before that.
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(context.DeadlineExceeded))
	})
})
