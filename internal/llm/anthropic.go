package llm

import (
	"context"
	"strings"
)

const (
	AnthropicEndpoint = "https://api.anthropic.com"
	anthropicVersion  = "2023-06-01"
)

// Anthropic talks to the Messages API.
type Anthropic struct {
	opts Options
}

func NewAnthropic(opts Options) *Anthropic {
	return &Anthropic{opts: opts.withDefaults(AnthropicEndpoint)}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Anthropic) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	req := anthropicRequest{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		System:      c.opts.System,
		Temperature: c.opts.Temperature,
		Messages:    make([]anthropicMessage, 0, len(messages)),
	}
	for _, m := range messages {
		// System turns go in the top-level field.
		if m.Role == RoleSystem {
			req.System = strings.TrimSpace(req.System + "\n" + m.Content)
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	headers := map[string]string{
		"x-api-key":         c.opts.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := postJSON(ctx, c.opts.HTTPClient, "anthropic", joinURL(c.opts.Endpoint, "/v1/messages"), headers, req, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
