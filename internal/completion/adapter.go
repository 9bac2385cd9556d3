// Package completion wraps the external text-completion function. The model
// is a black box behind Adapter; everything above it deals in ordered
// role-tagged turns.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Turn is one role-tagged entry of a context window.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is a single completion call: the full ordered context window plus
// the output budget and sampling temperature.
type Request struct {
	Turns           []Turn
	MaxOutputTokens int
	Temperature     float64
}

// Adapter performs one completion call. Implementations are fallible and
// rate-limited; no retry policy lives at this layer.
type Adapter interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	BaseURL string
	APIKey  string
	Model   string
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" || strings.TrimSpace(cfg.BaseURL) != "" {
			return NewHTTPAdapter(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" && strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("completion http mode requires a base URL or API key")
		}
		return NewHTTPAdapter(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported completion adapter mode %q", cfg.Mode)
	}
}
