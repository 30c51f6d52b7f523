// Package embedded implements the bootstrap described in SPEC_FULL.md §4.E:
// pick a free ephemeral port, spawn and supervise a ktserver child process,
// and hand back a Client once it is accepting connections.
//
// The supervisor runs as a background goroutine; it is not pinned to an OS
// thread, and the blocking exec.Cmd.Wait runs in a goroutine of its own.
package embedded

import (
	"context"
	"math/rand"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kyototycoon/ktasync-go/internal/ktlog"
	"github.com/kyototycoon/ktasync-go/internal/ktserr"
	ktasync "github.com/kyototycoon/ktasync-go"
)

const (
	portProbeAttempts   = 20
	portProbeSleep      = 200 * time.Millisecond
	connectAttempts     = 20
	connectRetrySleep   = 200 * time.Millisecond
	supervisorCooldown  = 10 * time.Second
	serverBinary        = "ktserver"
)

var (
	mu       sync.Mutex
	instance *ktasync.Client
)

// Config customizes Start. The zero value uses every documented default.
type Config struct {
	Args           []string
	Timeout        time.Duration
	MaxConnections int
	RangeFrom      int
	RangeTo        int
}

func (c Config) withDefaults() Config {
	if c.MaxConnections == 0 {
		c.MaxConnections = ktasync.DefaultMaxConnections
	}
	if c.RangeFrom == 0 && c.RangeTo == 0 {
		c.RangeFrom, c.RangeTo = ktasync.RangeFrom, ktasync.RangeTo
	}
	return c
}

// Start returns the process-wide embedded Client, spawning and supervising
// a ktserver child process on first call. Once a start has succeeded,
// subsequent calls (with any arguments) return the same instance; a failed
// start publishes nothing, so a later call starts again — see SPEC_FULL.md
// §3 "Embedded singleton" and §9 "Process-wide singleton".
func Start(ctx context.Context, cfg Config) (*ktasync.Client, error) {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return instance, nil
	}
	c, err := start(ctx, cfg.withDefaults())
	if err != nil {
		return nil, err
	}
	instance = c
	return instance, nil
}

func start(ctx context.Context, cfg Config) (*ktasync.Client, error) {
	port, err := pickPort(cfg.RangeFrom, cfg.RangeTo)
	if err != nil {
		return nil, err
	}

	supCtx, cancel := context.WithCancel(context.Background())
	go supervise(supCtx, port, cfg.Args)
	go func() {
		<-ctx.Done()
		cancel()
	}()

	return connect(port, cfg, cancel)
}

// pickPort probes up to portProbeAttempts random ports in [from, to],
// binding and immediately releasing each one, and pins the first
// successful probe — a deliberate divergence from the Python source, which
// pins whichever probe happened to succeed last (SPEC_FULL.md §9 Open
// Questions).
func pickPort(from, to int) (int, error) {
	if to < from {
		from, to = to, from
	}
	span := to - from + 1

	for attempt := 0; attempt < portProbeAttempts; attempt++ {
		p := from + rand.Intn(span)
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
		if err == nil {
			_ = l.Close()
			time.Sleep(portProbeSleep)
			return p, nil
		}
		time.Sleep(portProbeSleep)
	}
	return 0, &ktserr.EmbeddedStartupError{Reason: "no free port found in range after 20 attempts"}
}

// supervise owns the child ktserver process: spawn, wait, and on
// unexpected exit, restart after a cooldown. It runs until ctx is
// cancelled, at which point it sends SIGTERM to a running child and
// returns without logging — that is the deliberate-shutdown path, not a
// failure.
func supervise(ctx context.Context, port int, args []string) {
	for {
		if ctx.Err() != nil {
			return
		}

		cmd := exec.Command(serverBinary, append([]string{
			"-le", "-host", "127.0.0.1", "-port", strconv.Itoa(port),
		}, args...)...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			ktlog.Default.Warnf("ktserver failed to start: %v", err)
			select {
			case <-time.After(supervisorCooldown):
				continue
			case <-ctx.Done():
				return
			}
		}

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case <-done:
			if ctx.Err() == nil {
				ktlog.Default.Criticalf("ktserver died!")
				select {
				case <-time.After(supervisorCooldown):
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			if cmd.Process != nil {
				_ = cmd.Process.Signal(syscall.SIGTERM)
			}
			<-done
			return
		}
	}
}

// connect repeatedly dials the freshly-spawned server's raw TCP port until
// it accepts connections, closes that probe connection, and hands back a
// Client bound to the port. The returned Client holds no open connection:
// its pool dials Streams lazily on first use. It gives up after
// connectAttempts.
func connect(port int, cfg Config, cancelSupervisor context.CancelFunc) (*ktasync.Client, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	for attempt := 0; attempt < connectAttempts; attempt++ {
		conn, err := net.DialTimeout("tcp", addr, connectRetrySleep)
		if err == nil {
			_ = conn.Close()
			return ktasync.NewClient("127.0.0.1", port,
				ktasync.WithTimeout(cfg.Timeout),
				ktasync.WithMaxConnections(cfg.MaxConnections),
			), nil
		}
		time.Sleep(connectRetrySleep)
	}
	cancelSupervisor()
	return nil, &ktserr.EmbeddedStartupError{Reason: "could not connect after 20 attempts"}
}
