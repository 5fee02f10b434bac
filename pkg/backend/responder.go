package backend

import (
	"context"
	"fmt"
	"strings"

	"chatwidget/pkg/config"
	"chatwidget/pkg/transport"
)

// Responder produces the reply for one widget message.
type Responder interface {
	Name() string
	Reply(ctx context.Context, req transport.Request) (string, error)
}

// Echo answers with the message it was given.
type Echo struct{}

func (Echo) Name() string { return config.ResponderEcho }

func (Echo) Reply(_ context.Context, req transport.Request) (string, error) {
	return fmt.Sprintf("You said: **%s**", strings.TrimSpace(req.Message)), nil
}

// NewResponder builds the responder named by cfg.Responder.
func NewResponder(cfg config.WebhookConfig) (Responder, error) {
	switch cfg.Responder {
	case "", config.ResponderEcho:
		return Echo{}, nil
	case config.ResponderOpenAI:
		return NewOpenAI(cfg.OpenAI)
	case config.ResponderFantasy:
		return NewFantasy(cfg.OpenAI)
	case config.ResponderOpenCode:
		return NewOpenCode(cfg.OpenCode)
	default:
		return nil, fmt.Errorf("unsupported responder %q", cfg.Responder)
	}
}
