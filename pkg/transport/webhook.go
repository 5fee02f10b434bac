package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxReplyBytes = 1 << 20

// Webhook POSTs each message as JSON to a fixed endpoint.
type Webhook struct {
	endpoint string
	client   *http.Client
}

// NewWebhook builds a webhook transport. A zero timeout leaves the request
// bounded only by its context.
func NewWebhook(endpoint string, timeout time.Duration) *Webhook {
	return &Webhook{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Send(ctx context.Context, req Request) (string, error) {
	log := webhookLogger().With("session_id", req.SessionID)
	startedAt := time.Now()

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	log.Debug("webhook request started", "message_length", len(req.Message))

	resp, err := w.client.Do(httpReq)
	if err != nil {
		log.Debug("webhook request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		log.Debug("webhook request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("read reply: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug("webhook request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", resp.StatusCode)
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if !gjson.ValidBytes(body) {
		log.Debug("webhook request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "reply is not JSON")
		return "", ErrInvalidReply
	}

	reply := ResolveReply(body)
	log.Debug("webhook request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "reply_length", len(reply))
	return reply, nil
}

func webhookLogger() *slog.Logger {
	return slog.Default().With("component", "transport.webhook")
}
