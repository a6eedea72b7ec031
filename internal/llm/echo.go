package llm

import (
	"context"
	"fmt"
)

// Echo answers without any external service by quoting the last user turn.
type Echo struct {
	NodeID string
}

func (e Echo) Generate(ctx context.Context, messages []ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return fmt.Sprintf("%s heard: %s", e.NodeID, messages[i].Content), nil
		}
	}
	return "", ErrEmptyResponse
}
