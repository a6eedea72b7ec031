package config

import "time"

// Config holds node configuration values.
type Config struct {
	Node     NodeConfig     `mapstructure:"node" yaml:"node"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Speech   SpeechConfig   `mapstructure:"speech" yaml:"speech"`
	Admin    AdminConfig    `mapstructure:"admin" yaml:"admin"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type NodeConfig struct {
	// ID is stable for the node lifetime. Generated when empty.
	ID string `mapstructure:"id" yaml:"id"`
}

type NetworkConfig struct {
	Group                string `mapstructure:"group" yaml:"group"`
	Interface            string `mapstructure:"interface" yaml:"interface"`
	BufferSize           int    `mapstructure:"buffer_size" yaml:"buffer_size"`
	CompressionThreshold int    `mapstructure:"compression_threshold" yaml:"compression_threshold"`
	PrefixHeuristic      bool   `mapstructure:"prefix_heuristic" yaml:"prefix_heuristic"`
}

type PipelineConfig struct {
	QueueCapacity int           `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	IntakeDelay   time.Duration `mapstructure:"intake_delay" yaml:"intake_delay"`
	Greeting      string        `mapstructure:"greeting" yaml:"greeting"`
	// FailFast cancels the surviving loop when the other one fails.
	FailFast          bool          `mapstructure:"fail_fast" yaml:"fail_fast"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay" yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay" yaml:"retry_max_delay"`
}

type LLMConfig struct {
	Backend         string        `mapstructure:"backend" yaml:"backend"`
	Model           string        `mapstructure:"model" yaml:"model"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Personality     string        `mapstructure:"personality" yaml:"personality"`
	PersonalityFile string        `mapstructure:"personality_file" yaml:"personality_file"`
	// History is the number of past turns replayed to the backend. 0 sends
	// each message on its own.
	History int `mapstructure:"history" yaml:"history"`
}

type SpeechConfig struct {
	// Command is run per reply, e.g. "espeak --stdin". Empty disables speech.
	Command string        `mapstructure:"command" yaml:"command"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AdminConfig struct {
	// Addr enables the admin HTTP server when set.
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const DefaultPersonality = "You are a helpful AI agent."

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			Group:                "239.255.255.250:8080",
			BufferSize:           65536,
			CompressionThreshold: 1024,
			PrefixHeuristic:      true,
		},
		Pipeline: PipelineConfig{
			QueueCapacity:     100,
			IntakeDelay:       5 * time.Second,
			Greeting:          "Hi",
			MaxRetries:        3,
			RetryInitialDelay: 500 * time.Millisecond,
			RetryMaxDelay:     8 * time.Second,
		},
		LLM: LLMConfig{
			Backend:     "openai",
			Model:       "gpt-3.5-turbo",
			Timeout:     30 * time.Second,
			Temperature: 0.7,
			MaxTokens:   1024,
			Personality: DefaultPersonality,
		},
		Speech: SpeechConfig{
			Timeout: 30 * time.Second,
		},
		Admin: AdminConfig{
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// setting is one flattened configuration key with its value. Durations are
// kept as strings so they read naturally in YAML.
type setting struct {
	key   string
	value any
}

func settings(c Config) []setting {
	return []setting{
		{"node.id", c.Node.ID},
		{"network.group", c.Network.Group},
		{"network.interface", c.Network.Interface},
		{"network.buffer_size", c.Network.BufferSize},
		{"network.compression_threshold", c.Network.CompressionThreshold},
		{"network.prefix_heuristic", c.Network.PrefixHeuristic},
		{"pipeline.queue_capacity", c.Pipeline.QueueCapacity},
		{"pipeline.intake_delay", c.Pipeline.IntakeDelay.String()},
		{"pipeline.greeting", c.Pipeline.Greeting},
		{"pipeline.fail_fast", c.Pipeline.FailFast},
		{"pipeline.max_retries", c.Pipeline.MaxRetries},
		{"pipeline.retry_initial_delay", c.Pipeline.RetryInitialDelay.String()},
		{"pipeline.retry_max_delay", c.Pipeline.RetryMaxDelay.String()},
		{"llm.backend", c.LLM.Backend},
		{"llm.model", c.LLM.Model},
		{"llm.api_key", c.LLM.APIKey},
		{"llm.endpoint", c.LLM.Endpoint},
		{"llm.timeout", c.LLM.Timeout.String()},
		{"llm.temperature", c.LLM.Temperature},
		{"llm.max_tokens", c.LLM.MaxTokens},
		{"llm.personality", c.LLM.Personality},
		{"llm.personality_file", c.LLM.PersonalityFile},
		{"llm.history", c.LLM.History},
		{"speech.command", c.Speech.Command},
		{"speech.timeout", c.Speech.Timeout.String()},
		{"admin.addr", c.Admin.Addr},
		{"admin.read_header_timeout", c.Admin.ReadHeaderTimeout.String()},
		{"admin.shutdown_timeout", c.Admin.ShutdownTimeout.String()},
		{"log.level", c.Log.Level},
		{"log.format", c.Log.Format},
	}
}
