package llm

import (
	"context"
	"net/url"
	"strings"
)

const GoogleEndpoint = "https://generativelanguage.googleapis.com"

// Google talks to the Gemini generateContent API.
type Google struct {
	opts Options
}

func NewGoogle(opts Options) *Google {
	return &Google{opts: opts.withDefaults(GoogleEndpoint)}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *Google) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	var req geminiRequest
	req.GenerationConfig.Temperature = c.opts.Temperature
	req.GenerationConfig.MaxOutputTokens = c.opts.MaxTokens

	system := c.opts.System
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = strings.TrimSpace(system + "\n" + m.Content)
		case RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	endpoint := joinURL(c.opts.Endpoint, "/v1beta/models/"+url.PathEscape(c.opts.Model)+":generateContent")
	headers := map[string]string{"x-goog-api-key": c.opts.APIKey}

	var resp geminiResponse
	if err := postJSON(ctx, c.opts.HTTPClient, "google", endpoint, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
