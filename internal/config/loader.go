package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/conclave/internal/llm"
	"github.com/vovakirdan/conclave/internal/utils"
)

const (
	envPrefix         = "CONCLAVE"
	envConfigPath     = "CONCLAVE_CONFIG"
	defaultConfigName = "conclave.yaml"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"node-id":               "node.id",
	"group":                 "network.group",
	"interface":             "network.interface",
	"buffer-size":           "network.buffer_size",
	"compression-threshold": "network.compression_threshold",
	"prefix-heuristic":      "network.prefix_heuristic",
	"queue-capacity":        "pipeline.queue_capacity",
	"processing-delay":      "pipeline.intake_delay",
	"greeting":              "pipeline.greeting",
	"fail-fast":             "pipeline.fail_fast",
	"max-retries":           "pipeline.max_retries",
	"llm-backend":           "llm.backend",
	"model":                 "llm.model",
	"api-key":               "llm.api_key",
	"endpoint":              "llm.endpoint",
	"timeout":               "llm.timeout",
	"personality":           "llm.personality",
	"personality-file":      "llm.personality_file",
	"history":               "llm.history",
	"speech-command":        "speech.command",
	"admin-addr":            "admin.addr",
	"log-level":             "log.level",
	"log-format":            "log.format",
}

// Load builds configuration from defaults, an optional config file, env
// vars and flags, and returns the config file used ("" for none).
// Precedence: defaults < config file < env vars < flags.
func Load(logger *zerolog.Logger, explicitPath string, flags *pflag.FlagSet) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	for _, s := range settings(cfg) {
		v.SetDefault(s.key, s.value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return cfg, "", err
		}
	}

	configPath, explicit := resolveConfigPath(explicitPath)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if !missing || explicit {
				return cfg, configPath, fmt.Errorf("read config: %w", err)
			}
			if logger != nil {
				logger.Debug().Str("path", configPath).Msg("no config file, using defaults")
			}
			configPath = ""
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.resolve(logger)
	return cfg, configPath, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// resolve fills values derived from the environment: the node id and the
// backend API key.
func (c *Config) resolve(logger *zerolog.Logger) {
	if c.Node.ID == "" {
		c.Node.ID = utils.NewNodeID()
		if logger != nil {
			logger.Info().Str("node_id", c.Node.ID).Msg("generated node id")
		}
	}
	if c.LLM.APIKey == "" {
		if backend, err := llm.ParseBackend(c.LLM.Backend); err == nil {
			if env := backend.APIKeyEnv(); env != "" {
				c.LLM.APIKey = os.Getenv(env)
			}
		}
	}
}

// resolveConfigPath reports the file to read and whether the caller asked
// for it explicitly.
func resolveConfigPath(explicitPath string) (string, bool) {
	if explicitPath != "" {
		return explicitPath, true
	}
	if p := os.Getenv(envConfigPath); p != "" {
		return p, true
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName, false
	}
	return filepath.Join(cwd, defaultConfigName), false
}

// WriteDefault writes cfg as YAML to path, refusing to overwrite unless
// force is set.
func WriteDefault(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("write config: %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML, sections in declaration order.
func Marshal(cfg Config) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	sections := map[string]*yaml.Node{}

	for _, s := range settings(cfg) {
		name, key, _ := strings.Cut(s.key, ".")
		section, ok := sections[name]
		if !ok {
			section = &yaml.Node{Kind: yaml.MappingNode}
			sections[name] = section
			root.Content = append(root.Content, scalarNode(name), section)
		}

		var value yaml.Node
		if err := value.Encode(s.value); err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.key, err)
		}
		section.Content = append(section.Content, scalarNode(key), &value)
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
