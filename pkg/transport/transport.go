// Package transport relays a user message to the configured webhook and
// resolves the reply text.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatwidget/pkg/clock"
	"chatwidget/pkg/config"
)

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrStatus matches every *StatusError.
	ErrStatus       = errors.New("transport: unexpected status")
	ErrInvalidReply = errors.New("transport: reply is not JSON")
)

// Transport sends one message and returns the reply text.
type Transport interface {
	Send(ctx context.Context, req Request) (string, error)
}

// Request is the payload POSTed to the webhook.
type Request struct {
	Message   string
	SessionID string
	Timestamp time.Time
}

type wireRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRequest{
		Message:   r.Message,
		SessionID: r.SessionID,
		Timestamp: r.Timestamp.UTC().Format(TimestampLayout),
	})
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var wire wireRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.Message = wire.Message
	r.SessionID = wire.SessionID
	r.Timestamp = time.Time{}
	if ts := strings.TrimSpace(wire.Timestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		r.Timestamp = parsed
	}
	return nil
}

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transport: webhook returned status %d", e.Code)
	}
	return fmt.Sprintf("transport: webhook returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// New picks the webhook transport when an endpoint is configured and the stub
// otherwise.
func New(cfg *config.Config, clk clock.Clock) Transport {
	endpoint := strings.TrimSpace(cfg.Widget.Endpoint)
	if endpoint == "" {
		slog.Default().With("component", "transport.factory").Debug("No endpoint configured, using stub transport")
		return NewStub(clk, time.Duration(cfg.Transport.StubDelayMS)*time.Millisecond)
	}

	return NewWebhook(endpoint, time.Duration(cfg.Transport.RequestTimeoutSeconds)*time.Second)
}
