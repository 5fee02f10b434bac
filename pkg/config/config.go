package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath   = "CHATWIDGET_CONFIG"
	envEndpoint     = "CHATWIDGET_ENDPOINT"
	envAllowedHosts = "CHATWIDGET_ALLOWED_HOSTS"
	envHost         = "CHATWIDGET_HOST"
)

// ErrConfigNotFound is returned by findConfigPath when no cwd-local config file exists.
var ErrConfigNotFound = errors.New("config file not found")

// Config is the root runtime configuration loaded from config.json or config.yaml.
type Config struct {
	Widget    WidgetConfig    `json:"widget" yaml:"widget"`
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Webhook   WebhookConfig   `json:"webhook" yaml:"webhook"`
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
}

// WidgetConfig is the configuration surface supplied at widget initialization.
type WidgetConfig struct {
	Endpoint          string   `json:"endpoint" yaml:"endpoint"`
	Color             string   `json:"color" yaml:"color"`
	BotName           string   `json:"bot_name" yaml:"bot_name"`
	BotAvatar         string   `json:"bot_avatar" yaml:"bot_avatar"`
	WelcomeMessage    string   `json:"welcome_message" yaml:"welcome_message"`
	Position          string   `json:"position" yaml:"position"`
	PopupDelayMS      int      `json:"popup_delay_ms" yaml:"popup_delay_ms"`
	PopupMessage      string   `json:"popup_message" yaml:"popup_message"`
	RevealMode        string   `json:"reveal_mode" yaml:"reveal_mode"`
	StreamingSpeedMS  int      `json:"streaming_speed_ms" yaml:"streaming_speed_ms"`
	QuickReplies      []string `json:"quick_replies" yaml:"quick_replies"`
	AllowedHosts      []string `json:"allowed_hosts" yaml:"allowed_hosts"`
	Host              string   `json:"host" yaml:"host"`
	WelcomeDelayMS    int      `json:"welcome_delay_ms" yaml:"welcome_delay_ms"`
	QuickReplyDelayMS int      `json:"quick_reply_delay_ms" yaml:"quick_reply_delay_ms"`
}

// TransportConfig tunes the webhook client and the no-endpoint stub.
type TransportConfig struct {
	RequestTimeoutSeconds int `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	StubDelayMS           int `json:"stub_delay_ms" yaml:"stub_delay_ms"`
}

// WebhookConfig configures the demo webhook backend.
type WebhookConfig struct {
	Host           string         `json:"host" yaml:"host"`
	Port           int            `json:"port" yaml:"port"`
	Path           string         `json:"path" yaml:"path"`
	Responder      string         `json:"responder" yaml:"responder"`
	AllowedOrigins []string       `json:"allowed_origins" yaml:"allowed_origins"`
	OpenAI         OpenAIConfig   `json:"openai" yaml:"openai"`
	OpenCode       OpenCodeConfig `json:"opencode" yaml:"opencode"`
}

// OpenAIConfig configures the openai and fantasy responders of the demo backend.
type OpenAIConfig struct {
	BaseURL               string `json:"base_url" yaml:"base_url"`
	APIKeyEnv             string `json:"api_key_env" yaml:"api_key_env"`
	Model                 string `json:"model" yaml:"model"`
	Instructions          string `json:"instructions" yaml:"instructions"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// OpenCodeConfig configures the opencode responder, which prompts an opencode
// server.
type OpenCodeConfig struct {
	BaseURL               string `json:"base_url" yaml:"base_url"`
	Username              string `json:"username" yaml:"username"`
	PasswordEnv           string `json:"password_env" yaml:"password_env"`
	Model                 string `json:"model" yaml:"model"`
	Agent                 string `json:"agent" yaml:"agent"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// LoadConfig resolves the config file, unmarshals it, and applies .env and environment overrides.
//
// A missing cwd-local config file is not an error: every widget setting is optional.
// Keys present in the file override the defaults, so an explicit 0 delay is kept.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	cfg := Default()

	configPath, err := findConfigPath()
	switch {
	case errors.Is(err, ErrConfigNotFound):
	case err != nil:
		return nil, err
	default:
		if err := readConfigFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if endpoint := strings.TrimSpace(os.Getenv(envEndpoint)); endpoint != "" {
		cfg.Widget.Endpoint = endpoint
	}

	if rawHosts := strings.TrimSpace(os.Getenv(envAllowedHosts)); rawHosts != "" {
		cfg.Widget.AllowedHosts = parseCSV(rawHosts)
	}

	if host := strings.TrimSpace(os.Getenv(envHost)); host != "" {
		cfg.Widget.Host = host
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is CHATWIDGET_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", ErrConfigNotFound
}
