package app

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/conclave/internal/config"
	"github.com/vovakirdan/conclave/internal/proto"
)

var errSocket = errors.New("socket gone")

type fakeTransport struct {
	inbound chan proto.Message
	sent    chan proto.Message
	recvErr error
	closed  atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan proto.Message, 8),
		sent:    make(chan proto.Message, 16),
	}
}

func (f *fakeTransport) Send(ctx context.Context, m proto.Message) error {
	select {
	case f.sent <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Receive(ctx context.Context) (proto.Message, error) {
	if f.recvErr != nil {
		return proto.Message{}, f.recvErr
	}
	select {
	case m := <-f.inbound:
		return m, nil
	case <-ctx.Done():
		return proto.Message{}, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeTransport) mustSent(t *testing.T) proto.Message {
	t.Helper()
	select {
	case m := <-f.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for sent message")
		return proto.Message{}
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Node.ID = "node-a"
	cfg.LLM.Backend = "echo"
	cfg.Pipeline.IntakeDelay = 0
	cfg.Pipeline.RetryInitialDelay = time.Millisecond
	cfg.Pipeline.RetryMaxDelay = time.Millisecond
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, ft *fakeTransport) *App {
	t.Helper()
	logger := zerolog.New(nil)
	a, err := New(context.Background(), cfg, &logger, WithTransport(ft), WithOutput(io.Discard))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func runAsync(ctx context.Context, a *App) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("app did not stop")
		return nil
	}
}

func TestRunGreetsRepliesAndStops(t *testing.T) {
	ft := newFakeTransport()
	a := newTestApp(t, testConfig(), ft)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, a)

	if greeting := ft.mustSent(t); greeting.Content != "Hi" || greeting.SenderID != "node-a" {
		t.Fatalf("unexpected greeting: %+v", greeting)
	}

	ft.inbound <- proto.NewMessage("node-b", "hello")
	if reply := ft.mustSent(t); reply.Content != "node-a heard: hello" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if !ft.closed.Load() {
		t.Fatalf("transport should be closed after run")
	}
}

func TestRunFailFastCancelsSibling(t *testing.T) {
	ft := newFakeTransport()
	ft.recvErr = errSocket
	cfg := testConfig()
	cfg.Pipeline.FailFast = true
	a := newTestApp(t, cfg, ft)

	err := waitRun(t, runAsync(context.Background(), a))
	if !errors.Is(err, errSocket) {
		t.Fatalf("expected socket error, got %v", err)
	}
}

func TestRunKeepsProcessingAfterIntakeFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.recvErr = errSocket
	a := newTestApp(t, testConfig(), ft)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, a)

	ft.mustSent(t)
	select {
	case err := <-done:
		t.Fatalf("run returned while processing loop alive: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	// Processing still drains what is already queued.
	if err := a.queue.TryPush(proto.NewMessage("node-b", "still there?")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if reply := ft.mustSent(t); reply.Content != "node-a heard: still there?" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	cancel()
	if err := waitRun(t, done); !errors.Is(err, errSocket) {
		t.Fatalf("expected intake error after stop, got %v", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Backend = "carrier-pigeon"
	logger := zerolog.New(nil)

	if _, err := New(context.Background(), cfg, &logger, WithTransport(newFakeTransport())); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestAdminEnablesTapAndStats(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.Addr = "127.0.0.1:0"
	a := newTestApp(t, cfg, newFakeTransport())

	if a.hub == nil || a.server == nil {
		t.Fatalf("admin server and tap should be built when an address is set")
	}
	stats := a.stats()
	if stats.Node != "node-a" || stats.State != "starting" || stats.Queue.Cap != cfg.Pipeline.QueueCapacity {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	a.cleanup()
}

func TestAdminDisabledByDefault(t *testing.T) {
	a := newTestApp(t, testConfig(), newFakeTransport())
	if a.hub != nil || a.server != nil {
		t.Fatalf("admin surface should be off without an address")
	}
	a.cleanup()
}
