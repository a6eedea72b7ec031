// Package pipeline runs a node: an intake loop moving datagrams from the
// transport into the queue, and a processing loop answering queued
// messages and broadcasting the replies.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/conclave/internal/core"
	"github.com/vovakirdan/conclave/internal/llm"
	"github.com/vovakirdan/conclave/internal/metrics"
	"github.com/vovakirdan/conclave/internal/proto"
	"github.com/vovakirdan/conclave/internal/retry"
	"github.com/vovakirdan/conclave/internal/speech"
)

const (
	DefaultGreeting    = "Hi"
	DefaultIntakeDelay = 5 * time.Second
)

var ErrMissingDependency = errors.New("missing dependency")

// Transport moves messages to and from the bus.
type Transport interface {
	Send(ctx context.Context, m proto.Message) error
	Receive(ctx context.Context) (proto.Message, error)
}

// Publisher receives bus events for observers.
type Publisher interface {
	Publish(ev *core.Event)
}

// Printer renders transcript lines.
type Printer interface {
	PrintMessage(m proto.Message)
}

// Deps are the collaborators of a pipeline. Transport, Queue and
// Generator are required.
type Deps struct {
	Transport Transport
	Queue     *core.Queue[proto.Message]
	Generator llm.Generator
	Speaker   speech.Speaker
	Tap       Publisher
	Printer   Printer
	Logger    *zerolog.Logger
	Metrics   *metrics.Metrics
}

type Config struct {
	NodeID   string
	Greeting string
	// IntakeDelay pauses intake after each received message.
	IntakeDelay time.Duration
	Retry       retry.Config
}

// State is the lifecycle phase of a pipeline.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Pipeline wires the two loops through the queue. Loops are never
// restarted and never cancel each other.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zerolog.Logger
	state  atomic.Int32
}

// New validates deps and applies config defaults.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	switch {
	case deps.Transport == nil:
		return nil, fmt.Errorf("%w: transport", ErrMissingDependency)
	case deps.Queue == nil:
		return nil, fmt.Errorf("%w: queue", ErrMissingDependency)
	case deps.Generator == nil:
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	case cfg.NodeID == "":
		return nil, fmt.Errorf("%w: node id", ErrMissingDependency)
	}
	if deps.Speaker == nil {
		deps.Speaker = speech.Nop{}
	}
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.IntakeDelay < 0 {
		cfg.IntakeDelay = 0
	}

	logger := deps.Logger.With().Str("component", "pipeline").Str("node_id", cfg.NodeID).Logger()
	return &Pipeline{deps: deps, cfg: cfg, logger: &logger}, nil
}

// State returns the current lifecycle phase.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Start launches both loops. They end on their own fatal error or when
// ctx is cancelled; cancellation is not reported as an error.
func (p *Pipeline) Start(ctx context.Context) (intake, processing *Task) {
	intake = startTask(ctx, "intake", p.runIntake)
	processing = startTask(ctx, "processing", p.runProcessing)
	p.state.Store(int32(StateRunning))

	go func() {
		for _, t := range []*Task{intake, processing} {
			select {
			case <-t.Done():
			case <-ctx.Done():
			}
		}
		p.state.Store(int32(StateStopping))
	}()
	return intake, processing
}

func (p *Pipeline) runIntake(ctx context.Context) error {
	log := p.logger.With().Str("loop", "intake").Logger()
	log.Info().Msg("intake loop started")

	for {
		msg, err := p.deps.Transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("intake loop stopped")
				return nil
			}
			if errors.Is(err, proto.ErrDecode) {
				log.Warn().Err(err).Msg("skipping malformed datagram")
				continue
			}
			log.Error().Err(err).Msg("intake loop failed")
			return fmt.Errorf("intake: %w", err)
		}

		self := msg.SenderID == p.cfg.NodeID
		p.publish(core.EventReceived, msg, self)
		log.Debug().
			Str("sender", msg.SenderID).
			Bool("self", self).
			Int("bytes", len(msg.Content)).
			Msg("message received")

		if err := sleep(ctx, p.cfg.IntakeDelay); err != nil {
			log.Info().Msg("intake loop stopped")
			return nil
		}

		err = p.deps.Queue.TryPush(msg)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrQueueFull):
			p.deps.Metrics.QueueDropped()
			p.publish(core.EventDropped, msg, self)
			log.Warn().Str("sender", msg.SenderID).Str("code", core.ErrorCode(err)).Msg("queue full, dropping message")
		default:
			log.Error().Err(err).Str("code", core.ErrorCode(err)).Msg("intake loop failed")
			return fmt.Errorf("intake: %w", err)
		}
	}
}

func (p *Pipeline) runProcessing(ctx context.Context) error {
	log := p.logger.With().Str("loop", "processing").Logger()
	log.Info().Msg("processing loop started")

	// Somebody has to speak first.
	if err := p.send(ctx, proto.NewMessage(p.cfg.NodeID, p.cfg.Greeting)); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.Error().Err(err).Msg("send greeting")
		return fmt.Errorf("processing: send greeting: %w", err)
	}

	for {
		msg, err := p.deps.Queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("processing loop stopped")
				return nil
			}
			log.Error().Err(err).Str("code", core.ErrorCode(err)).Msg("processing loop failed")
			return fmt.Errorf("processing: %w", err)
		}
		log.Debug().Str("sender", msg.SenderID).Dur("age", msg.Age()).Msg("processing message")

		text := p.reply(ctx, &log, msg)
		if ctx.Err() != nil {
			log.Info().Msg("processing loop stopped")
			return nil
		}

		reply := proto.NewMessage(p.cfg.NodeID, text)
		if p.deps.Printer != nil {
			p.deps.Printer.PrintMessage(msg)
			p.deps.Printer.PrintMessage(reply)
		}

		if err := p.send(ctx, reply); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("send reply")
			return fmt.Errorf("processing: send reply: %w", err)
		}

		if err := p.deps.Speaker.Speak(ctx, text); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("speech playback failed")
		}
	}
}

// reply asks the generator for an answer to msg, retrying with backoff.
// Exhausted retries degrade to a fixed fallback text.
func (p *Pipeline) reply(ctx context.Context, log *zerolog.Logger, msg proto.Message) string {
	cfg := p.cfg.Retry
	notify := cfg.Notify
	cfg.Notify = func(attempt int, err error, next time.Duration) {
		p.deps.Metrics.ReplyAttempt(metrics.OutcomeRetry)
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", next).Msg("reply generation failed, retrying")
		if notify != nil {
			notify(attempt, err, next)
		}
	}

	start := time.Now()
	text, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) (string, error) {
		return p.deps.Generator.Generate(ctx, []llm.ChatMessage{llm.UserMessage(msg.Content)})
	})
	p.deps.Metrics.ObserveReply(time.Since(start))

	if err != nil {
		p.deps.Metrics.ReplyAttempt(metrics.OutcomeFallback)
		log.Error().Err(err).Str("sender", msg.SenderID).Msg("reply generation failed")
		return FallbackReply(p.cfg.NodeID, err)
	}
	p.deps.Metrics.ReplyAttempt(metrics.OutcomeSuccess)
	return text
}

// FallbackReply is broadcast when no reply could be generated.
func FallbackReply(nodeID string, err error) string {
	return fmt.Sprintf("Agent %s received your message but couldn't generate a proper response: %v", nodeID, err)
}

func (p *Pipeline) send(ctx context.Context, m proto.Message) error {
	if err := p.deps.Transport.Send(ctx, m); err != nil {
		return err
	}
	p.publish(core.EventSent, m, true)
	return nil
}

func (p *Pipeline) publish(kind core.EventKind, m proto.Message, self bool) {
	if p.deps.Tap == nil {
		return
	}
	p.deps.Tap.Publish(core.NewEvent(kind, m, self))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
