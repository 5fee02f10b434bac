package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	core "charm.land/fantasy"
	provideropenai "charm.land/fantasy/providers/openai"

	"chatwidget/pkg/config"
	"chatwidget/pkg/transport"
)

type languageModelProvider interface {
	LanguageModel(ctx context.Context, modelID string) (core.LanguageModel, error)
}

// Fantasy answers through a fantasy agent on the OpenAI provider. Each message
// is a single-turn call; the instructions travel as a system message.
type Fantasy struct {
	provider       languageModelProvider
	modelID        string
	instructions   string
	requestTimeout time.Duration
	generate       func(context.Context, core.LanguageModel, core.AgentCall) (*core.AgentResult, error)
}

func NewFantasy(cfg config.OpenAIConfig) (*Fantasy, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, errors.New("webhook.openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	modelID, err := normalizeModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	providerOptions := []provideropenai.Option{provideropenai.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		providerOptions = append(providerOptions, provideropenai.WithBaseURL(baseURL))
	}

	fantasyProvider, err := provideropenai.New(providerOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize fantasy openai provider: %w", err)
	}

	return &Fantasy{
		provider:       fantasyProvider,
		modelID:        modelID,
		instructions:   strings.TrimSpace(cfg.Instructions),
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		generate:       generateWithFantasyAgent,
	}, nil
}

func (f *Fantasy) Name() string { return config.ResponderFantasy }

func (f *Fantasy) Reply(ctx context.Context, req transport.Request) (string, error) {
	ctx, cancel := withTimeout(ctx, f.requestTimeout)
	defer cancel()
	log := responderLogger(config.ResponderFantasy).With("operation", "reply", "session_id", req.SessionID)
	startedAt := time.Now()

	prompt := strings.TrimSpace(req.Message)
	if prompt == "" {
		return "", errors.New("message is required")
	}
	log.Debug("responder request started", "model", f.modelID, "prompt_length", len(prompt))

	languageModel, err := f.provider.LanguageModel(ctx, f.modelID)
	if err != nil {
		return "", fmt.Errorf("resolve language model: %w", err)
	}

	call := core.AgentCall{Prompt: prompt}
	if f.instructions != "" {
		call.Messages = []core.Message{{
			Role:    core.MessageRoleSystem,
			Content: []core.MessagePart{core.TextPart{Text: f.instructions}},
		}}
	}

	generate := f.generate
	if generate == nil {
		generate = generateWithFantasyAgent
	}

	result, err := generate(ctx, languageModel, call)
	if err != nil {
		log.Debug("responder request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("reply failed: %w", err)
	}

	text := fantasyText(result.Response.Content)
	if text == "" {
		log.Debug("responder request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no output text")
		return "", errors.New("reply succeeded but returned no text")
	}
	log.Debug("responder request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	return text, nil
}

// fantasyText joins the text parts of an agent response, skipping reasoning
// and tool content.
func fantasyText(content core.ResponseContent) string {
	var lines []string
	for _, part := range content {
		if part.GetType() != core.ContentTypeText {
			continue
		}

		textPart, ok := core.AsContentType[core.TextContent](part)
		if !ok {
			continue
		}

		if line := strings.TrimSpace(textPart.Text); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

func generateWithFantasyAgent(ctx context.Context, model core.LanguageModel, call core.AgentCall) (*core.AgentResult, error) {
	return core.NewAgent(model).Generate(ctx, call)
}
