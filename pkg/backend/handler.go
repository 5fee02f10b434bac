// Package backend is a small webhook server speaking the widget's wire format,
// for running the widget locally without an automation platform.
package backend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chatwidget/pkg/config"
	"chatwidget/pkg/hostgate"
	"chatwidget/pkg/transport"
)

const maxRequestBytes = 64 << 10

// Reply is the JSON body returned for a handled message.
type Reply struct {
	Output string `json:"output"`
}

// Handler serves the webhook route.
type Handler struct {
	path           string
	allowedOrigins []string
	responder      Responder
	log            *slog.Logger
}

func NewHandler(cfg config.WebhookConfig, responder Responder, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	path := cfg.Path
	if path == "" {
		path = config.DefaultWebhookPath
	}

	return &Handler{
		path:           path,
		allowedOrigins: cfg.AllowedOrigins,
		responder:      responder,
		log:            log.With("component", "backend.handler"),
	}
}

// NewRouter wires the middleware stack and every route.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(h.path, h.handleWebhook)
	r.Options(h.path, h.handlePreflight)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "responder": h.responder.Name()})
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if !h.allowCORS(w, r) {
		respondError(w, http.StatusForbidden, "origin not allowed")
		return
	}
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.allowCORS(w, r) {
		respondError(w, http.StatusForbidden, "origin not allowed")
		return
	}

	var req transport.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	log := h.log.With("session_id", req.SessionID)
	reply, err := h.responder.Reply(r.Context(), req)
	if err != nil {
		log.Error("Responder failed", "responder", h.responder.Name(), "error", err)
		respondError(w, http.StatusBadGateway, "responder failed")
		return
	}
	log.Info("Message answered", "message_length", len(req.Message), "reply_length", len(reply))

	respondJSON(w, http.StatusOK, Reply{Output: reply})
}

// allowCORS checks the Origin header against the allow-list and echoes it back
// when accepted. Requests without an Origin are not browser cross-origin calls
// and always pass.
func (h *Handler) allowCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if !hostgate.Allowed(hostgate.Hostname(origin), h.allowedOrigins) {
		h.log.Warn("Rejected request from origin", "origin", origin)
		return false
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
	return true
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			startedAt := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(startedAt).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Debug("Failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
