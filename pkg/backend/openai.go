package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"chatwidget/pkg/config"
	"chatwidget/pkg/transport"
)

// OpenAI answers through the Responses API. Every message is a fresh request;
// nothing is remembered between turns.
type OpenAI struct {
	client         osdk.Client
	model          string
	instructions   string
	requestTimeout time.Duration
}

func NewOpenAI(cfg config.OpenAIConfig) (*OpenAI, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, errors.New("webhook.openai.api_key_env is required or OPENAI_API_KEY must be set")
	}

	model, err := normalizeModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	return &OpenAI{
		client:         osdk.NewClient(opts...),
		model:          model,
		instructions:   strings.TrimSpace(cfg.Instructions),
		requestTimeout: requestTimeout,
	}, nil
}

func (o *OpenAI) Name() string { return config.ResponderOpenAI }

func (o *OpenAI) Reply(ctx context.Context, req transport.Request) (string, error) {
	ctx, cancel := withTimeout(ctx, o.requestTimeout)
	defer cancel()
	log := responderLogger(config.ResponderOpenAI).With("operation", "reply", "session_id", req.SessionID)
	startedAt := time.Now()

	prompt := strings.TrimSpace(req.Message)
	if prompt == "" {
		return "", errors.New("message is required")
	}
	log.Debug("responder request started", "model", o.model, "prompt_length", len(prompt))

	params := responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: osdk.String(prompt)},
	}
	if o.instructions != "" {
		params.Instructions = osdk.String(o.instructions)
	}

	response, err := o.client.Responses.New(ctx, params)
	if err != nil {
		log.Debug("responder request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("reply failed: %w", err)
	}

	text := strings.TrimSpace(response.OutputText())
	if text == "" {
		log.Debug("responder request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no output text")
		return "", errors.New("reply succeeded but returned no text")
	}
	log.Debug("responder request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	return text, nil
}

func responderLogger(name string) *slog.Logger {
	return slog.Default().With("component", "backend."+name)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}

func resolveAPIKey(cfg config.OpenAIConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// normalizeModel accepts "gpt-5-nano" and "openai/gpt-5-nano".
func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	providerID, modelID, found := strings.Cut(model, "/")
	if !found {
		return model, nil
	}

	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", errors.New("model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by the openai responders", providerID)
	}

	return modelID, nil
}
