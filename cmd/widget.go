package cmd

import (
	"log/slog"
	"strings"

	"chatwidget/pkg/bus"
	"chatwidget/pkg/clock"
	"chatwidget/pkg/config"
	"chatwidget/pkg/transport"
	"chatwidget/pkg/widget"
)

// widgetFlags are the per-run overrides shared by chat and send.
type widgetFlags struct {
	endpoint string
	host     string
}

func (f widgetFlags) apply(cfg *config.Config) {
	if value := strings.TrimSpace(f.endpoint); value != "" {
		cfg.Widget.Endpoint = value
	}
	if value := strings.TrimSpace(f.host); value != "" {
		cfg.Widget.Host = value
	}
}

func newController(cfg *config.Config, log *slog.Logger) (*widget.Controller, error) {
	clk := clock.New()
	return widget.New(cfg.Widget, transport.New(cfg, clk), clk, log)
}

func transportName(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Widget.Endpoint) == "" {
		return "stub"
	}
	return "webhook"
}

// logEvent records controller events; failures are errors, the rest debug.
func logEvent(log *slog.Logger, event bus.Event) {
	switch event.Type {
	case bus.EventTransportFailed:
		log.Error("Controller event", "event", event.Type, "error", event.Error)
	case bus.EventRevealProgress:
	default:
		log.Debug("Controller event", "event", event.Type, "message_id", event.MessageID)
	}
}
