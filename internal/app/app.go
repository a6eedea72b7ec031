// Package app wires a node together from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/conclave/internal/config"
	"github.com/vovakirdan/conclave/internal/console"
	"github.com/vovakirdan/conclave/internal/core"
	"github.com/vovakirdan/conclave/internal/llm"
	"github.com/vovakirdan/conclave/internal/metrics"
	"github.com/vovakirdan/conclave/internal/pipeline"
	"github.com/vovakirdan/conclave/internal/proto"
	"github.com/vovakirdan/conclave/internal/retry"
	"github.com/vovakirdan/conclave/internal/speech"
	transporthttp "github.com/vovakirdan/conclave/internal/transport/http"
	"github.com/vovakirdan/conclave/internal/transport/multicast"
)

// Transport is the bus endpoint the app owns and closes on shutdown.
type Transport interface {
	pipeline.Transport
	Close() error
}

// Option customizes how New builds the app.
type Option func(*options)

type options struct {
	transport Transport
	generator llm.Generator
	out       io.Writer
}

// WithTransport replaces the multicast socket.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithGenerator replaces the configured reply backend.
func WithGenerator(g llm.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithOutput sets where the banner and transcript go. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// App wires together transport, pipeline and admin layers.
type App struct {
	cfg       config.Config
	transport Transport
	queue     *core.Queue[proto.Message]
	hub       *core.Hub
	pipeline  *pipeline.Pipeline
	server    *stdhttp.Server
	out       io.Writer
	log       *zerolog.Logger
}

// New constructs the application from validated configuration. The
// transport is opened here, so a bad group or interface fails early.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger, opts ...Option) (*App, error) {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	generator := o.generator
	if generator == nil {
		generator, err = newGenerator(cfg)
		if err != nil {
			return nil, err
		}
	}
	if cfg.LLM.History > 0 {
		generator = llm.WithHistory(generator, cfg.LLM.History)
	}

	speaker, err := speech.New(cfg.Speech.Command, cfg.Speech.Timeout)
	if err != nil {
		return nil, fmt.Errorf("init speech: %w", err)
	}

	transport := o.transport
	if transport == nil {
		mt, err := multicast.Open(ctx, multicast.Config{
			Group:                cfg.Network.Group,
			Interface:            cfg.Network.Interface,
			BufferSize:           cfg.Network.BufferSize,
			CompressionThreshold: cfg.Network.CompressionThreshold,
			PrefixHeuristic:      cfg.Network.PrefixHeuristic,
		}, logger, m)
		if err != nil {
			return nil, fmt.Errorf("open transport: %w", err)
		}
		transport = mt
	}

	queue := core.NewMessageQueue(cfg.Pipeline.QueueCapacity, cfg.Node.ID)
	if err := m.TrackQueue(queue.Stats); err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("track queue: %w", err)
	}

	a := &App{
		cfg:       cfg,
		transport: transport,
		queue:     queue,
		out:       o.out,
		log:       logger,
	}

	deps := pipeline.Deps{
		Transport: transport,
		Queue:     queue,
		Generator: generator,
		Speaker:   speaker,
		Printer:   console.NewPrinter(o.out, cfg.Node.ID),
		Logger:    logger,
		Metrics:   m,
	}
	if cfg.Admin.Addr != "" {
		a.hub = core.NewHub()
		deps.Tap = a.hub
	}

	a.pipeline, err = pipeline.New(deps, pipeline.Config{
		NodeID:      cfg.Node.ID,
		Greeting:    cfg.Pipeline.Greeting,
		IntakeDelay: cfg.Pipeline.IntakeDelay,
		Retry: retry.Config{
			MaxAttempts:  cfg.Pipeline.MaxRetries,
			InitialDelay: cfg.Pipeline.RetryInitialDelay,
			MaxDelay:     cfg.Pipeline.RetryMaxDelay,
			Multiplier:   2,
			Jitter:       true,
		},
	})
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	if a.hub != nil {
		a.server = transporthttp.NewServer(transporthttp.Sources{
			Hub:      a.hub,
			Gatherer: reg,
			Stats:    a.stats,
			NodeID:   cfg.Node.ID,
		}, cfg.Admin, logger)
	}

	return a, nil
}

func newGenerator(cfg config.Config) (llm.Generator, error) {
	backend, err := llm.ParseBackend(cfg.LLM.Backend)
	if err != nil {
		return nil, err
	}
	system, err := cfg.LLM.SystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("read personality: %w", err)
	}
	return llm.New(backend, cfg.Node.ID, llm.Options{
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Endpoint:    cfg.LLM.Endpoint,
		System:      system,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
}

// Run starts both loops and the admin server, and blocks until the loops
// end or ctx is cancelled. Loop failures are returned joined.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	console.Banner(a.out, console.BannerInfo{
		NodeID:  a.cfg.Node.ID,
		Group:   a.cfg.Network.Group,
		Backend: a.cfg.LLM.Backend,
		Model:   a.cfg.LLM.Model,
		Admin:   a.cfg.Admin.Addr,
	})

	if a.hub != nil {
		go a.hub.Run(ctx)
	}

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("admin server listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	loopsDone := make(chan error, 1)
	go func() {
		loopsDone <- a.runLoops(ctx)
	}()

	select {
	case err := <-loopsDone:
		a.shutdownServer()
		return err
	case err := <-serverErr:
		a.log.Error().Err(err).Msg("admin server failed")
		cancel()
		loopErr := <-loopsDone
		return errors.Join(fmt.Errorf("admin server: %w", err), loopErr)
	}
}

// runLoops applies the cross-loop failure policy. With fail-fast the
// first failure cancels the sibling; otherwise the survivor keeps going.
func (a *App) runLoops(ctx context.Context) error {
	if a.cfg.Pipeline.FailFast {
		g, gctx := errgroup.WithContext(ctx)
		intake, processing := a.pipeline.Start(gctx)
		g.Go(intake.Wait)
		g.Go(processing.Wait)
		return g.Wait()
	}

	intake, processing := a.pipeline.Start(ctx)
	for _, t := range []*pipeline.Task{intake, processing} {
		go func(t *pipeline.Task) {
			if err := t.Wait(); err != nil {
				a.log.Warn().Err(err).Str("loop", t.Name()).Msg("loop ended, sibling keeps running")
			}
		}(t)
	}
	return errors.Join(intake.Wait(), processing.Wait())
}

func (a *App) stats() transporthttp.Stats {
	return transporthttp.Stats{
		Node:  a.cfg.Node.ID,
		Group: a.cfg.Network.Group,
		State: a.pipeline.State().String(),
		Queue: a.queue.Stats(),
	}
}

func (a *App) shutdownServer() {
	if a.server == nil {
		return
	}
	timeout := a.cfg.Admin.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.log.Info().Msg("shutting down admin server")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("admin server shutdown")
	}
}

// cleanup closes the queue and the transport.
func (a *App) cleanup() {
	a.queue.CloseWrite()
	a.queue.CloseRead()
	if err := a.transport.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close transport")
	} else {
		a.log.Info().Msg("transport closed")
	}
}
