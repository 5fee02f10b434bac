package backend_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatwidget/pkg/backend"
	"chatwidget/pkg/clock"
	"chatwidget/pkg/config"
	"chatwidget/pkg/transcript"
	"chatwidget/pkg/transport"
	"chatwidget/pkg/widget"
)

type recordingWidgetResponder struct {
	mu         sync.Mutex
	sessionIDs []string
	messages   []string
}

func (r *recordingWidgetResponder) Name() string { return "recording" }

func (r *recordingWidgetResponder) Reply(_ context.Context, req transport.Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionIDs = append(r.sessionIDs, req.SessionID)
	r.messages = append(r.messages, req.Message)
	return "ok: ** " + req.Message + " **", nil
}

func (r *recordingWidgetResponder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sessionIDs...), append([]string(nil), r.messages...)
}

func TestWidgetTalksToWebhookBackend(t *testing.T) {
	t.Parallel()

	responder := &recordingWidgetResponder{}
	cfg := config.Default()
	srv := httptest.NewServer(backend.NewRouter(backend.NewHandler(cfg.Webhook, responder, nil)))
	defer srv.Close()

	cfg.Widget.Endpoint = srv.URL + cfg.Webhook.Path
	clk := clock.NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	ctrl, err := widget.New(cfg.Widget, transport.New(cfg, clk), clk, nil)
	require.NoError(t, err)
	defer ctrl.Shutdown()

	for _, message := range []string{"first", "second"} {
		require.True(t, ctrl.Submit(message))
		require.Eventually(t, func() bool {
			return ctrl.Snapshot().Phase == widget.PhaseRevealing
		}, 5*time.Second, 5*time.Millisecond)

		clk.Advance(time.Minute)
		require.Equal(t, widget.PhaseReady, ctrl.Snapshot().Phase)
	}

	sessionIDs, messages := responder.snapshot()
	require.Equal(t, []string{"first", "second"}, messages)
	require.Equal(t, []string{ctrl.SessionID(), ctrl.SessionID()}, sessionIDs)

	view := ctrl.Snapshot()
	var bot []string
	for _, msg := range view.Messages {
		if msg.Role == transcript.RoleBot && msg.Text != cfg.Widget.WelcomeMessage {
			bot = append(bot, msg.Text)
		}
	}
	require.Equal(t, []string{"ok: **first**", "ok: **second**"}, bot)
}
