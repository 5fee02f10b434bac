package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"

	"chatwidget/pkg/config"
	"chatwidget/pkg/transport"
)

// OpenCode relays widget messages to an opencode server. Every message opens
// a fresh opencode session titled after the widget session, so the server
// keeps a browsable trace while replies stay stateless.
type OpenCode struct {
	client         *sdk.Client
	model          string
	agent          string
	requestTimeout time.Duration
}

func NewOpenCode(cfg config.OpenCodeConfig) (*OpenCode, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("webhook.opencode.base_url is required")
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if authHeader, ok := buildBasicAuthHeader(cfg); ok {
		opts = append(opts, option.WithHeader("Authorization", authHeader))
	}

	return &OpenCode{
		client:         sdk.NewClient(opts...),
		model:          strings.TrimSpace(cfg.Model),
		agent:          strings.TrimSpace(cfg.Agent),
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}, nil
}

func (o *OpenCode) Name() string { return config.ResponderOpenCode }

func (o *OpenCode) Reply(ctx context.Context, req transport.Request) (string, error) {
	ctx, cancel := withTimeout(ctx, o.requestTimeout)
	defer cancel()
	log := responderLogger(config.ResponderOpenCode).With("operation", "reply", "session_id", req.SessionID)
	startedAt := time.Now()

	prompt := strings.TrimSpace(req.Message)
	if prompt == "" {
		return "", errors.New("message is required")
	}
	log.Debug("responder request started", "model", o.model, "agent", o.agent, "prompt_length", len(prompt))

	sessionParams := sdk.SessionNewParams{}
	if title := strings.TrimSpace(req.SessionID); title != "" {
		sessionParams.Title = sdk.F("chatwidget " + title)
	}
	session, err := o.client.Session.New(ctx, sessionParams)
	if err != nil {
		log.Debug("responder request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("create session failed: %w", err)
	}
	if session.ID == "" {
		return "", errors.New("create session returned empty session id")
	}

	params := sdk.SessionPromptParams{
		Parts: sdk.F([]sdk.SessionPromptParamsPartUnion{
			sdk.TextPartInputParam{
				Type: sdk.F(sdk.TextPartInputTypeText),
				Text: sdk.F(prompt),
			},
		}),
	}
	if o.agent != "" {
		params.Agent = sdk.F(o.agent)
	}
	if providerID, modelID, ok := parseModelRef(o.model); ok {
		params.Model = sdk.F(sdk.SessionPromptParamsModel{
			ProviderID: sdk.F(providerID),
			ModelID:    sdk.F(modelID),
		})
	}

	response, err := o.client.Session.Prompt(ctx, session.ID, params)
	if err != nil {
		log.Debug("responder request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	text := openCodeText(response.Parts)
	if text == "" {
		log.Debug("responder request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no text parts")
		return "", errors.New("prompt succeeded but returned no text parts")
	}
	log.Debug("responder request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"opencode_session_id", session.ID,
		"response_length", len(text),
		"parts_count", len(response.Parts),
	)

	return text, nil
}

func buildBasicAuthHeader(cfg config.OpenCodeConfig) (string, bool) {
	passwordEnv := strings.TrimSpace(cfg.PasswordEnv)
	if passwordEnv == "" {
		return "", false
	}

	password := strings.TrimSpace(os.Getenv(passwordEnv))
	if password == "" {
		return "", false
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "opencode"
	}

	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token, true
}

// parseModelRef splits "provider/model"; anything else leaves the server default.
func parseModelRef(input string) (providerID string, modelID string, ok bool) {
	providerID, modelID, found := strings.Cut(strings.TrimSpace(input), "/")
	if !found {
		return "", "", false
	}

	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", "", false
	}

	return providerID, modelID, true
}

func openCodeText(parts []sdk.Part) string {
	var lines []string
	for _, part := range parts {
		if part.Type != sdk.PartTypeText {
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			lines = append(lines, text)
		}
	}

	return strings.Join(lines, "\n")
}
