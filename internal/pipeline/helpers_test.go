package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/conclave/internal/core"
	"github.com/vovakirdan/conclave/internal/llm"
	"github.com/vovakirdan/conclave/internal/proto"
	"github.com/vovakirdan/conclave/internal/retry"
)

const testNode = "node-a"

type recvResult struct {
	msg proto.Message
	err error
}

// fakeTransport feeds Receive from a channel and records sends.
type fakeTransport struct {
	inbox chan recvResult
	sent  chan proto.Message

	mu      sync.Mutex
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox: make(chan recvResult, 16),
		sent:  make(chan proto.Message, 64),
	}
}

func (f *fakeTransport) Receive(ctx context.Context) (proto.Message, error) {
	select {
	case r := <-f.inbox:
		return r.msg, r.err
	case <-ctx.Done():
		return proto.Message{}, ctx.Err()
	}
}

func (f *fakeTransport) Send(ctx context.Context, m proto.Message) error {
	f.mu.Lock()
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.sent <- m
	return nil
}

func (f *fakeTransport) failSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(sender, content string) {
	f.inbox <- recvResult{msg: proto.NewMessage(sender, content)}
}

func (f *fakeTransport) fail(err error) {
	f.inbox <- recvResult{err: err}
}

func mustSent(t *testing.T, ch <-chan proto.Message) proto.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("expected a sent message")
		return proto.Message{}
	}
}

func expectNoSend(t *testing.T, ch <-chan proto.Message, wait time.Duration) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected send: %+v", m)
	case <-time.After(wait):
	}
}

func mustFinish(t *testing.T, task *Task) error {
	t.Helper()
	select {
	case <-task.Done():
		return task.Err()
	case <-time.After(2 * time.Second):
		t.Fatalf("%s loop did not finish", task.Name())
		return nil
	}
}

func expectRunning(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
		t.Fatalf("%s loop ended unexpectedly: %v", task.Name(), task.Err())
	default:
	}
}

// scriptedGenerator fails the first failures calls, then replies.
type scriptedGenerator struct {
	mu       sync.Mutex
	failures int
	calls    int
	release  chan struct{}
}

func (g *scriptedGenerator) Generate(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls <= g.failures {
		return "", errors.New("backend unavailable")
	}
	return fmt.Sprintf("re: %s", messages[len(messages)-1].Content), nil
}

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingTap struct {
	mu     sync.Mutex
	events []*core.Event
}

func (r *recordingTap) Publish(ev *core.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingTap) count(kind core.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type recordingPrinter struct {
	mu    sync.Mutex
	lines []string
}

func (p *recordingPrinter) PrintMessage(m proto.Message) {
	p.mu.Lock()
	p.lines = append(p.lines, m.SenderID+": "+m.Content)
	p.mu.Unlock()
}

func (p *recordingPrinter) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

type failingSpeaker struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSpeaker) Speak(context.Context, string) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errors.New("no audio device")
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

type fixture struct {
	transport *fakeTransport
	queue     *core.Queue[proto.Message]
	gen       *scriptedGenerator
	tap       *recordingTap
	printer   *recordingPrinter
	pipeline  *Pipeline
}

func newFixture(t *testing.T, capacity int, gen *scriptedGenerator, mutate func(*Deps, *Config)) *fixture {
	t.Helper()

	if gen == nil {
		gen = &scriptedGenerator{}
	}
	f := &fixture{
		transport: newFakeTransport(),
		queue:     core.NewMessageQueue(capacity, testNode),
		gen:       gen,
		tap:       &recordingTap{},
		printer:   &recordingPrinter{},
	}
	deps := Deps{
		Transport: f.transport,
		Queue:     f.queue,
		Generator: f.gen,
		Tap:       f.tap,
		Printer:   f.printer,
	}
	cfg := Config{NodeID: testNode, Retry: fastRetry(3)}
	if mutate != nil {
		mutate(&deps, &cfg)
	}

	p, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	f.pipeline = p
	return f
}
