package llm

import (
	"context"
	"sync"
)

// History keeps the last turns of the conversation and replays them ahead
// of every request. Only successful exchanges are remembered.
type History struct {
	next  Generator
	limit int

	mu    sync.Mutex
	turns []ChatMessage
}

// WithHistory wraps next with a window of at most limit turns. A limit of
// zero or less returns next unchanged.
func WithHistory(next Generator, limit int) Generator {
	if limit <= 0 {
		return next
	}
	return &History{next: next, limit: limit}
}

func (h *History) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	h.mu.Lock()
	convo := make([]ChatMessage, 0, len(h.turns)+len(messages))
	convo = append(convo, h.turns...)
	h.mu.Unlock()
	convo = append(convo, messages...)

	reply, err := h.next.Generate(ctx, convo)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.turns = append(h.turns, messages...)
	h.turns = append(h.turns, ChatMessage{Role: RoleAssistant, Content: reply})
	if over := len(h.turns) - h.limit; over > 0 {
		h.turns = append([]ChatMessage(nil), h.turns[over:]...)
	}
	h.mu.Unlock()

	return reply, nil
}

// Turns returns a copy of the remembered window.
func (h *History) Turns() []ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ChatMessage(nil), h.turns...)
}
