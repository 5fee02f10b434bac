package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatwidget/pkg/config"
	"chatwidget/pkg/transport"
)

type recordingResponder struct {
	reply string
	err   error
	got   []transport.Request
}

func (r *recordingResponder) Name() string { return "recording" }

func (r *recordingResponder) Reply(_ context.Context, req transport.Request) (string, error) {
	r.got = append(r.got, req)
	return r.reply, r.err
}

func newTestRouter(responder Responder, origins ...string) http.Handler {
	cfg := config.Default().Webhook
	cfg.AllowedOrigins = origins
	return NewRouter(NewHandler(cfg, responder, nil))
}

func postMessage(t *testing.T, router http.Handler, body string, origin string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, config.DefaultWebhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAnswersWithOutputField(t *testing.T) {
	t.Parallel()

	responder := &recordingResponder{reply: "Hello back"}
	router := newTestRouter(responder)

	rec := postMessage(t, router, `{"message":"hi","sessionId":"session_1_abc","timestamp":"2026-06-01T12:00:00.000Z"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Equal(t, "Hello back", reply.Output)

	require.Len(t, responder.got, 1)
	require.Equal(t, "hi", responder.got[0].Message)
	require.Equal(t, "session_1_abc", responder.got[0].SessionID)
	require.Equal(t, 2026, responder.got[0].Timestamp.Year())
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"message":`},
		{name: "empty message", body: `{"message":"   ","sessionId":"s"}`},
		{name: "missing message", body: `{"sessionId":"s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder := &recordingResponder{reply: "unused"}
			rec := postMessage(t, newTestRouter(responder), tt.body, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if len(responder.got) != 0 {
				t.Fatalf("responder called %d times, want 0", len(responder.got))
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("body = %q, want error payload", rec.Body.String())
			}
		})
	}
}

func TestWebhookResponderFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&recordingResponder{err: errors.New("upstream down")})
	rec := postMessage(t, router, `{"message":"hi"}`, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestWebhookOriginGate(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&recordingResponder{reply: "ok"}, "example.com", "*.example.com")

	rec := postMessage(t, router, `{"message":"hi"}`, "https://shop.example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = postMessage(t, router, `{"message":"hi"}`, "https://evil.test")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebhookPreflight(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&recordingResponder{}, "example.com")

	req := httptest.NewRequest(http.MethodOptions, config.DefaultWebhookPath, nil)
	req.Header.Set("Origin", "http://example.com:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	router := newTestRouter(Echo{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok","responder":"echo"}`, string(body))
}

func TestWebhookRoundTripThroughTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestRouter(Echo{}))
	defer srv.Close()

	client := transport.NewWebhook(srv.URL+config.DefaultWebhookPath, 0)
	reply, err := client.Send(context.Background(), transport.Request{Message: "  ping ", SessionID: "s"})
	require.NoError(t, err)
	require.Equal(t, "You said: **ping**", reply)
}
