package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vovakirdan/conclave/internal/config"
	applog "github.com/vovakirdan/conclave/internal/log"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "conclave",
		Short: "LLM agents talking to each other over UDP multicast",
		Long: "conclave runs a node that greets a multicast group, answers every peer\n" +
			"message with an LLM generated reply and broadcasts the answer back.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNode(cmd, configPath)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default ./conclave.yaml, or $CONCLAVE_CONFIG)")
	addBusFlags(pf)
	addNodeFlags(root)

	root.AddCommand(
		newRunCmd(&configPath),
		newSendCmd(&configPath),
		newListenCmd(&configPath),
		newConfigCmd(),
	)
	return root
}

// addBusFlags registers flags shared by every command touching the bus.
func addBusFlags(fs *pflag.FlagSet) {
	d := config.Default()

	fs.String("node-id", "", "unique node id (generated when empty)")
	fs.String("group", d.Network.Group, "multicast group address, host:port")
	fs.String("interface", "", "interface name or IPv4 address for multicast (default: system choice)")
	fs.Int("buffer-size", d.Network.BufferSize, "receive buffer size in bytes")
	fs.Int("compression-threshold", d.Network.CompressionThreshold, "compress content larger than this many bytes")
	fs.Bool("prefix-heuristic", d.Network.PrefixHeuristic, "detect compressed content from peers that do not flag it")
	fs.String("log-level", d.Log.Level, "log level: trace, debug, info, warn, error")
	fs.String("log-format", d.Log.Format, "log format: console or json")
}

// addNodeFlags registers the flags of a full node.
func addNodeFlags(cmd *cobra.Command) {
	d := config.Default()
	fs := cmd.Flags()

	fs.Int("queue-capacity", d.Pipeline.QueueCapacity, "intake queue capacity")
	fs.Duration("processing-delay", d.Pipeline.IntakeDelay, "pause after each received message")
	fs.String("greeting", d.Pipeline.Greeting, "first message broadcast on startup")
	fs.Bool("fail-fast", d.Pipeline.FailFast, "stop the node when either loop fails")
	fs.Int("max-retries", d.Pipeline.MaxRetries, "reply generation attempts before falling back")
	fs.String("llm-backend", d.LLM.Backend, "reply backend: openai, anthropic, google, openrouter, local, echo")
	fs.String("model", d.LLM.Model, "model name")
	fs.String("api-key", "", "backend API key (default from the backend's env var)")
	fs.String("endpoint", "", "override the backend base URL")
	fs.Duration("timeout", d.LLM.Timeout, "backend request timeout")
	fs.String("personality", d.LLM.Personality, "system personality of the agent")
	fs.String("personality-file", "", "read the personality from a file")
	fs.Int("history", d.LLM.History, "past turns replayed to the backend")
	fs.String("speech-command", "", "text to speech command, e.g. \"espeak --stdin\" or \"say {text}\"")
	fs.String("admin-addr", "", "admin HTTP address for /health, /metrics, /stats and /ws (disabled when empty)")

	cmd.MarkFlagsMutuallyExclusive("personality", "personality-file")
}

// loadConfig resolves configuration for cmd and returns it validated,
// together with the logger it asks for.
func loadConfig(cmd *cobra.Command, configPath string) (config.Config, *zerolog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	boot := applog.New(level, format)

	cfg, used, err := config.Load(boot, configPath, cmd.Flags())
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	logger := applog.New(cfg.Log.Level, cfg.Log.Format)
	if used != "" {
		logger.Info().Str("path", used).Msg("config loaded")
	}
	return cfg, logger, nil
}
