package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/vovakirdan/conclave/internal/llm"
	"github.com/vovakirdan/conclave/internal/transport/multicast"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const (
	minLLMTimeout  = time.Second
	maxLLMTimeout  = 300 * time.Second
	maxRetries     = 10
	maxIntakeDelay = 60 * time.Second
	minBufferSize  = 512
	maxBufferSize  = 65536
)

// Validate checks the configuration and reports every problem found.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch {
	case strings.TrimSpace(c.Node.ID) == "":
		add("node id cannot be empty")
	case !nodeIDPattern.MatchString(c.Node.ID):
		add("node id %q can only contain alphanumeric characters, hyphens, and underscores", c.Node.ID)
	}

	if _, err := multicast.ParseGroup(c.Network.Group); err != nil {
		add("network.group: %w", err)
	}
	if c.Network.BufferSize < minBufferSize || c.Network.BufferSize > maxBufferSize {
		add("network.buffer_size must be between %d and %d", minBufferSize, maxBufferSize)
	}
	if c.Network.CompressionThreshold < 0 {
		add("network.compression_threshold cannot be negative")
	}

	if c.Pipeline.QueueCapacity < 1 {
		add("pipeline.queue_capacity must be at least 1")
	}
	if c.Pipeline.IntakeDelay < 0 || c.Pipeline.IntakeDelay > maxIntakeDelay {
		add("processing delay must be between 0 and %s", maxIntakeDelay)
	}
	if c.Pipeline.MaxRetries < 0 || c.Pipeline.MaxRetries > maxRetries {
		add("max retries cannot exceed %d", maxRetries)
	}
	if c.Pipeline.RetryInitialDelay < 0 || c.Pipeline.RetryMaxDelay < c.Pipeline.RetryInitialDelay {
		add("pipeline retry delays must satisfy 0 <= retry_initial_delay <= retry_max_delay")
	}

	backend, err := llm.ParseBackend(c.LLM.Backend)
	if err != nil {
		add("llm.backend: %w", err)
	} else if backend.NeedsModel() && strings.TrimSpace(c.LLM.Model) == "" {
		add("model name cannot be empty")
	}
	if c.LLM.Timeout < minLLMTimeout || c.LLM.Timeout > maxLLMTimeout {
		add("timeout must be between %s and %s", minLLMTimeout, maxLLMTimeout)
	}
	if c.LLM.History < 0 {
		add("llm.history cannot be negative")
	}
	if c.LLM.PersonalityFile != "" {
		if c.LLM.Personality != "" && c.LLM.Personality != DefaultPersonality {
			add("personality and personality file are mutually exclusive")
		}
		if _, err := c.LLM.ReadPersonality(); err != nil {
			add("invalid personality file %q: %w", c.LLM.PersonalityFile, err)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		add("log.format must be console or json")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ReadPersonality returns the effective personality, read from
// PersonalityFile when set.
func (l LLMConfig) ReadPersonality() (string, error) {
	if l.PersonalityFile == "" {
		return l.Personality, nil
	}

	info, err := os.Stat(l.PersonalityFile)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a file", l.PersonalityFile)
	}
	data, err := os.ReadFile(l.PersonalityFile)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("personality file is empty")
	}
	return string(data), nil
}

// SystemPrompt is the instruction sent ahead of every conversation.
func (l LLMConfig) SystemPrompt() (string, error) {
	personality, err := l.ReadPersonality()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimSpace(personality) + " Keep responses concise."), nil
}
