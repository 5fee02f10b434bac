package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultColor             = "#6c5ce7"
	DefaultBotName           = "AI Assistant"
	DefaultBotAvatar         = "🤖"
	DefaultWelcomeMessage    = "Hi! 👋 How can I help you?"
	DefaultPosition          = PositionRight
	DefaultPopupDelayMS      = 7000
	DefaultPopupMessage      = "Need a hand? Ask me anything!"
	DefaultRevealMode        = RevealModeTiered
	DefaultStreamingSpeedMS  = 20
	DefaultWelcomeDelayMS    = 500
	DefaultQuickReplyDelayMS = 300
	DefaultStubDelayMS       = 1500

	DefaultWebhookHost      = "127.0.0.1"
	DefaultWebhookPort      = 8787
	DefaultWebhookPath      = "/webhook"
	DefaultWebhookResponder = ResponderEcho
	DefaultOpenAIModel      = "gpt-5-nano"
)

const (
	PositionLeft  = "left"
	PositionRight = "right"

	RevealModeTiered = "tiered"
	RevealModeFlat   = "flat"

	ResponderEcho     = "echo"
	ResponderOpenAI   = "openai"
	ResponderFantasy  = "fantasy"
	ResponderOpenCode = "opencode"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ApplyDefaults fills every blank string and unset port with its documented
// default. Timings are not touched: zero is a valid delay, so their defaults are
// seeded by Default before a config file is read.
func (c *Config) ApplyDefaults() {
	if c == nil {
		return
	}

	w := &c.Widget
	w.Endpoint = strings.TrimSpace(w.Endpoint)
	w.Color = defaultString(w.Color, DefaultColor)
	w.BotName = defaultString(w.BotName, DefaultBotName)
	w.BotAvatar = defaultString(w.BotAvatar, DefaultBotAvatar)
	w.WelcomeMessage = defaultString(w.WelcomeMessage, DefaultWelcomeMessage)
	w.Position = strings.ToLower(defaultString(w.Position, DefaultPosition))
	w.PopupMessage = defaultString(w.PopupMessage, DefaultPopupMessage)
	w.RevealMode = strings.ToLower(defaultString(w.RevealMode, DefaultRevealMode))

	h := &c.Webhook
	h.Host = defaultString(h.Host, DefaultWebhookHost)
	if h.Port == 0 {
		h.Port = DefaultWebhookPort
	}
	h.Path = defaultString(h.Path, DefaultWebhookPath)
	h.Responder = strings.ToLower(defaultString(h.Responder, DefaultWebhookResponder))
	h.OpenAI.Model = defaultString(h.OpenAI.Model, DefaultOpenAIModel)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	w := c.Widget
	if !hexColorPattern.MatchString(w.Color) {
		return fmt.Errorf("widget.color must be a #rrggbb hex color, got %q", w.Color)
	}
	switch w.Position {
	case PositionLeft, PositionRight:
	default:
		return fmt.Errorf("widget.position must be %q or %q, got %q", PositionLeft, PositionRight, w.Position)
	}
	switch w.RevealMode {
	case RevealModeTiered, RevealModeFlat:
	default:
		return fmt.Errorf("widget.reveal_mode must be %q or %q, got %q", RevealModeTiered, RevealModeFlat, w.RevealMode)
	}

	delays := map[string]int{
		"widget.popup_delay_ms":          w.PopupDelayMS,
		"widget.streaming_speed_ms":      w.StreamingSpeedMS,
		"widget.welcome_delay_ms":        w.WelcomeDelayMS,
		"widget.quick_reply_delay_ms":    w.QuickReplyDelayMS,
		"transport.stub_delay_ms":        c.Transport.StubDelayMS,
		"transport.request_timeout_secs": c.Transport.RequestTimeoutSeconds,
	}
	for name, value := range delays {
		if value < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, value)
		}
	}

	switch c.Webhook.Responder {
	case ResponderEcho, ResponderOpenAI, ResponderFantasy, ResponderOpenCode:
	default:
		return fmt.Errorf("webhook.responder must be one of %q, %q, %q or %q, got %q",
			ResponderEcho, ResponderOpenAI, ResponderFantasy, ResponderOpenCode, c.Webhook.Responder)
	}
	if c.Webhook.Port < 0 || c.Webhook.Port > 65535 {
		return fmt.Errorf("webhook.port out of range: %d", c.Webhook.Port)
	}
	if !strings.HasPrefix(c.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with /, got %q", c.Webhook.Path)
	}

	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		Widget: WidgetConfig{
			PopupDelayMS:      DefaultPopupDelayMS,
			StreamingSpeedMS:  DefaultStreamingSpeedMS,
			WelcomeDelayMS:    DefaultWelcomeDelayMS,
			QuickReplyDelayMS: DefaultQuickReplyDelayMS,
		},
		Transport: TransportConfig{StubDelayMS: DefaultStubDelayMS},
	}
	cfg.ApplyDefaults()
	return cfg
}

func defaultString(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}

	return fallback
}
