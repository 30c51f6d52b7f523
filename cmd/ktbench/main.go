// Command ktbench exercises the full ktasync stack end-to-end: it either
// connects to an existing ktserver or spawns an embedded one, pre-populates
// the keys with one set_bulk batch, then runs a configurable number of
// concurrent get_bulk batches and reports throughput. It is the concrete, runnable home for the embedded supervisor
// and the pool's concurrency bound described in SPEC_FULL.md §4.I.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	ktasync "github.com/kyototycoon/ktasync-go"
	"github.com/kyototycoon/ktasync-go/embedded"
)

func main() {
	var (
		host      = pflag.String("host", ktasync.DefaultHost, "ktserver host")
		port      = pflag.Int("port", ktasync.DefaultPort, "ktserver port")
		embed     = pflag.Bool("embed", false, "spawn and use an embedded ktserver instead of --host/--port")
		maxConns  = pflag.Int("max-connections", ktasync.DefaultMaxConnections, "bounded connection pool size")
		workers   = pflag.Int("workers", 20, "number of concurrent get_bulk tasks")
		keys      = pflag.Int("keys", 50, "number of keys to pre-populate and fetch")
		keyPrefix = pflag.String("key-prefix", "ktbench:", "prefix for benchmark keys")
	)
	pflag.Parse()

	// A real cancelable context, not context.Background(): embedded.Start's
	// shutdown watcher (embedded.go) only ever fires when this ctx's Done
	// channel closes, and that is what lets the supervisor SIGTERM the
	// spawned ktserver instead of orphaning it when this process exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cleanup, err := connectClient(ctx, *embed, *host, *port, *maxConns)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ktbench:", err)
		os.Exit(1)
	}
	defer cleanup()

	kv := make(map[string][]byte, *keys)
	for i := 0; i < *keys; i++ {
		k := fmt.Sprintf("%s%d", *keyPrefix, i)
		kv[k] = []byte(fmt.Sprintf("value-%d", i))
	}

	if _, _, err := client.SetBulkKV(ctx, kv); err != nil {
		fmt.Fprintln(os.Stderr, "ktbench: set_bulk_kv failed:", err)
		os.Exit(1)
	}

	allKeys := make([][]byte, 0, len(kv))
	for k := range kv {
		allKeys = append(allKeys, []byte(k))
	}

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, *workers)
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.GetBulkKeys(ctx, allKeys); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	elapsed := time.Since(start)
	failed := 0
	for err := range errs {
		fmt.Fprintln(os.Stderr, "ktbench: get_bulk_keys failed:", err)
		failed++
	}

	fmt.Printf("ktbench: %d workers x %d keys in %s (idle streams now %d, %d failed)\n",
		*workers, len(allKeys), elapsed, client.FreeStreams(), failed)
}

func connectClient(ctx context.Context, embed bool, host string, port, maxConns int) (*ktasync.Client, func(), error) {
	if !embed {
		c := ktasync.NewClient(host, port, ktasync.WithMaxConnections(maxConns))
		return c, func() { _ = c.Close() }, nil
	}

	c, err := embedded.Start(ctx, embedded.Config{MaxConnections: maxConns})
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}
