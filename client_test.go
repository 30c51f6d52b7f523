package ktasync_test

import (
	"context"
	"net"
	"strconv"
	"time"

	ktasync "github.com/kyototycoon/ktasync-go"
	"github.com/kyototycoon/ktasync-go/internal/ktfake"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func newTestClient(srv *ktfake.Server, opts ...ktasync.Option) *ktasync.Client {
	host, portStr, err := net.SplitHostPort(srv.Addr())
	Expect(err).NotTo(HaveOccurred())
	port, err := strconv.Atoi(portStr)
	Expect(err).NotTo(HaveOccurred())
	allOpts := append([]ktasync.Option{ktasync.WithTimeout(2 * time.Second)}, opts...)
	return ktasync.NewClient(host, port, allOpts...)
}

var _ = Describe("Client against a fake Kyoto Tycoon server", func() {
	var srv *ktfake.Server
	var client *ktasync.Client

	BeforeEach(func() {
		var err error
		srv, err = ktfake.Start()
		Expect(err).NotTo(HaveOccurred())
		client = newTestClient(srv)
	})

	AfterEach(func() {
		_ = client.Close()
		_ = srv.Close()
	})

	It("sets and gets a single record", func() {
		ctx := context.Background()
		_, ok, err := client.Set(ctx, []byte("k"), []byte("v"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		val, found, err := client.Get(ctx, []byte("k"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(string(val)).To(Equal("v"))
	})

	It("reports found=false for a key the server never saw", func() {
		val, found, err := client.Get(context.Background(), []byte("missing"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
		Expect(val).To(BeNil())
	})

	It("batches a map of key/values through SetBulkKV and reads them back with GetBulkKeys", func() {
		ctx := context.Background()
		kv := map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}
		n, ok, err := client.SetBulkKV(ctx, kv)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(3)))

		got, err := client.GetBulkKeys(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("zzz")})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(3))
		Expect(string(got["a"])).To(Equal("1"))
		Expect(got).NotTo(HaveKey("zzz"))
	})

	It("removes a record and a second removal reports zero hits", func() {
		ctx := context.Background()
		_, _, err := client.Set(ctx, []byte("doomed"), []byte("v"))
		Expect(err).NotTo(HaveOccurred())

		n, ok, err := client.Remove(ctx, []byte("doomed"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(1)))

		n, ok, err = client.Remove(ctx, []byte("doomed"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(0)))
	})

	It("suppresses the response and releases a healthy Stream when FlagNoReply is set", func() {
		ctx := context.Background()
		n, ok, err := client.Set(ctx, []byte("k"), []byte("v"), ktasync.WithFlags(ktasync.FlagNoReply))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(n).To(Equal(int64(0)))

		// The fake server never wrote a reply; the Stream must still have
		// been returned to the free stack as healthy for this to succeed
		// without blocking.
		_, found, err := client.Get(ctx, []byte("k"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
	})

	It("runs a registered play_script procedure and returns its results", func() {
		srv.RegisterScript("double", func(args []ktfake.ScriptArg) []ktfake.ScriptArg {
			out := make([]ktfake.ScriptArg, len(args))
			for i, a := range args {
				out[i] = ktfake.ScriptArg{Key: a.Key, Value: append(append([]byte{}, a.Value...), a.Value...)}
			}
			return out
		})

		result, ok, err := client.PlayScript(context.Background(), "double",
			[]ktasync.ScriptRecord{{Key: []byte("x"), Value: []byte("ab")}}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(result).To(HaveLen(1))
		Expect(string(result[0].Value)).To(Equal("abab"))
	})

	It("surfaces a server-side failure as an error and discards the Stream", func() {
		srv.FailNextMutation(1)
		_, _, err := client.Set(context.Background(), []byte("k"), []byte("v"))
		Expect(err).To(HaveOccurred())

		// The pool must still be usable afterwards: the failed Stream was
		// discarded, not corrupted state in the free stack.
		_, ok, err := client.Set(context.Background(), []byte("k2"), []byte("v2"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("returns count=1 for both calls when the same (key, value) is set twice", func() {
		ctx := context.Background()
		n, ok, err := client.Set(ctx, []byte("idem"), []byte("v"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(1)))

		n, ok, err = client.Set(ctx, []byte("idem"), []byte("v"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(1)))

		val, found, err := client.Get(ctx, []byte("idem"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(string(val)).To(Equal("v"))
	})

	It("discards the Stream and releases the permit when ctx is cancelled mid round trip", func() {
		srv.DelayNextResponse(1, 200*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		_, _, err := client.Set(ctx, []byte("k"), []byte("v"))
		Expect(err).To(HaveOccurred())
		Expect(time.Since(start)).To(BeNumerically("<", 150*time.Millisecond))

		// The cancelled-mid-flight Stream must not have been returned to the
		// free stack as healthy.
		Expect(client.FreeStreams()).To(Equal(0))

		// The semaphore permit released by Release(s, false) must still be
		// usable: a fresh call on the same client succeeds normally.
		_, ok, err := client.Set(context.Background(), []byte("k2"), []byte("v2"))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("never exceeds its configured connection bound under concurrent load", func() {
		client2 := newTestClient(srv, ktasync.WithMaxConnections(2))
		defer client2.Close()

		ctx := context.Background()
		done := make(chan struct{}, 8)
		for i := 0; i < 8; i++ {
			go func(i int) {
				defer func() { done <- struct{}{} }()
				_, _, _ = client2.Set(ctx, []byte("key"), []byte("val"))
			}(i)
		}
		for i := 0; i < 8; i++ {
			<-done
		}
		Expect(client2.FreeStreams()).To(BeNumerically("<=", 2))
	})
})
