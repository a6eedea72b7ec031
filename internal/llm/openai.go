package llm

import (
	"context"
	"strings"
)

// Base URLs of OpenAI-compatible chat APIs.
const (
	OpenAIEndpoint     = "https://api.openai.com/v1"
	OpenRouterEndpoint = "https://openrouter.ai/api/v1"
	OllamaEndpoint     = "http://localhost:11434/v1"
)

// OpenAI talks to any chat completions API in the OpenAI format. It serves
// OpenAI itself, OpenRouter and Ollama.
type OpenAI struct {
	name string
	opts Options
}

// NewOpenAI builds a client for an OpenAI-compatible API. name labels
// errors; endpoint is the default base URL.
func NewOpenAI(name, endpoint string, opts Options) *OpenAI {
	return &OpenAI{name: name, opts: opts.withDefaults(endpoint)}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAI) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	req := openAIRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		Messages:    make([]openAIMessage, 0, len(messages)+1),
	}
	if c.opts.System != "" {
		req.Messages = append(req.Messages, openAIMessage{Role: RoleSystem, Content: c.opts.System})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	headers := map[string]string{}
	if c.opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.opts.APIKey
	}

	var resp openAIResponse
	if err := postJSON(ctx, c.opts.HTTPClient, c.name, joinURL(c.opts.Endpoint, "/chat/completions"), headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
