package llm

import (
	"fmt"
	"strings"
)

// Backend names a reply generator implementation.
type Backend string

const (
	BackendOpenAI     Backend = "openai"
	BackendAnthropic  Backend = "anthropic"
	BackendGoogle     Backend = "google"
	BackendOpenRouter Backend = "openrouter"
	BackendLocal      Backend = "local"
	BackendEcho       Backend = "echo"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendOpenAI, BackendAnthropic, BackendGoogle, BackendOpenRouter, BackendLocal, BackendEcho}

// ParseBackend resolves a backend name, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown llm backend %q", s)
}

// APIKeyEnv names the environment variable holding the backend's API key.
// Backends that need no key return "".
func (b Backend) APIKeyEnv() string {
	switch b {
	case BackendOpenAI:
		return "OPENAI_API_KEY"
	case BackendAnthropic:
		return "ANTHROPIC_API_KEY"
	case BackendGoogle:
		return "GEMINI_API_KEY"
	case BackendOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

// NeedsModel reports whether the backend requires a model name.
func (b Backend) NeedsModel() bool {
	return b != BackendEcho
}

// New builds the generator for backend. nodeID is only used by Echo.
func New(backend Backend, nodeID string, opts Options) (Generator, error) {
	switch backend {
	case BackendOpenAI:
		return NewOpenAI(string(backend), OpenAIEndpoint, opts), nil
	case BackendOpenRouter:
		return NewOpenAI(string(backend), OpenRouterEndpoint, opts), nil
	case BackendLocal:
		return NewOpenAI(string(backend), OllamaEndpoint, opts), nil
	case BackendAnthropic:
		return NewAnthropic(opts), nil
	case BackendGoogle:
		return NewGoogle(opts), nil
	case BackendEcho:
		return Echo{NodeID: nodeID}, nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", backend)
	}
}
