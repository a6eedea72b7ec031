// Package llm produces replies to bus messages. Backends talk to hosted
// chat APIs over HTTP; Echo works offline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultMaxTokens = 1024
	DefaultTimeout   = 30 * time.Second
)

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("empty response")

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// UserMessage builds a user turn.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// Generator produces a reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []ChatMessage) (string, error)
}

// Options configure an HTTP backend.
type Options struct {
	Model       string
	APIKey      string
	Endpoint    string // Overrides the backend's base URL when set.
	System      string
	Temperature float64 // Sent as is; zero asks for deterministic output.
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

func (o Options) withDefaults(endpoint string) Options {
	if o.Endpoint == "" {
		o.Endpoint = endpoint
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// APIError is a non-2xx answer from a backend.
type APIError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// Retryable reports whether repeating the request can help: rate limits
// and server-side failures.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
