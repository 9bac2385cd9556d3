package completion

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter produces deterministic local replies when no completion
// endpoint is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	var lastUser, background string
	for _, turn := range req.Turns {
		switch turn.Role {
		case RoleUser:
			lastUser = turn.Text
		case RoleSystem:
			if strings.Contains(turn.Text, "Background") {
				background = turn.Text
			}
		}
	}

	base := strings.TrimSpace(lastUser)
	if base == "" {
		base = "I am listening."
	}
	if background == "" {
		return fmt.Sprintf("I hear you: %s", base), nil
	}
	return fmt.Sprintf("I hear you: %s\nI remember what you've shared before.", base), nil
}
