// Package config loads the daemon's configuration from the precedence
// chain: built-in defaults, then ~/.miniclaw/config.json (ignored with a
// security log unless its mode is exactly 0600), then environment
// variables, then CLI flags applied by the command layer.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/mattdef/miniclaw-sub000/internal/errs"
)

// OpenAIConfig configures the OpenAI-shaped provider adapter.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// LocalConfig configures the streaming local-model adapter.
type LocalConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// TelegramConfig configures the Telegram channel adapter.
type TelegramConfig struct {
	Token string `json:"token,omitempty"`
}

// DiscordConfig configures the Discord channel adapter.
type DiscordConfig struct {
	Token string `json:"token,omitempty"`
}

// SlackConfig configures the Slack channel adapter (Socket Mode).
type SlackConfig struct {
	BotToken string `json:"bot_token,omitempty"`
	AppToken string `json:"app_token,omitempty"`
}

// ChannelsConfig groups the chat-transport adapters. A channel with an
// empty token is simply not started.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	Slack    SlackConfig    `json:"slack,omitempty"`

	// AllowFrom restricts which chat IDs the daemon answers. Empty
	// means no restriction (single-operator deployments usually pin
	// this to the operator's own IDs).
	AllowFrom []string `json:"allow_from,omitempty"`
}

// GatewayConfig tunes the daemon supervisor.
type GatewayConfig struct {
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// OutboundBuffer is the capacity of the outbound message queue.
	OutboundBuffer int `json:"outbound_buffer,omitempty"`

	// WebRatePerSecond bounds the web tool's outbound GETs. 0 disables
	// limiting.
	WebRatePerSecond float64 `json:"web_rate_per_second,omitempty"`

	// HeartbeatMinutes schedules the built-in heartbeat job at this
	// interval. 0 (the default) disables it.
	HeartbeatMinutes int `json:"heartbeat_minutes,omitempty"`
}

// Config is the fully-resolved daemon configuration.
type Config struct {
	// Workspace is the operator directory rooting markdown config,
	// memory, skills, and session files.
	Workspace string `json:"workspace,omitempty"`

	// Provider selects the LLM backend: "openai" or "local".
	Provider string `json:"provider,omitempty"`

	OpenAI   OpenAIConfig   `json:"openai,omitempty"`
	Local    LocalConfig    `json:"local,omitempty"`
	Channels ChannelsConfig `json:"channels,omitempty"`
	Gateway  GatewayConfig  `json:"gateway,omitempty"`
}

// Default returns the built-in defaults, the lowest layer of the
// precedence chain.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Workspace: filepath.Join(home, ".miniclaw", "workspace"),
		Provider:  "local",
		Local: LocalConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		OpenAI: OpenAIConfig{},
		Gateway: GatewayConfig{
			OutboundBuffer:   256,
			WebRatePerSecond: 2,
		},
	}
}

// DefaultPath returns the standard config file location,
// ~/.miniclaw/config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".miniclaw", "config.json")
}

// Load resolves the configuration: defaults, overlaid with the config
// file at path (DefaultPath() if path is empty), overlaid with
// environment variables. CLI flags are applied afterwards by the caller.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.applyFile(path, logger); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyFile overlays the JSON config file onto cfg. A missing file is
// fine. A file with mode other than 0600 is silently ignored apart from a
// security log, so a world-readable token file never feeds the daemon.
func (c *Config) applyFile(path string, logger *slog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.IO(path, err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		logger.Warn("ignoring config file with insecure permissions",
			"path", path, "mode", info.Mode().Perm().String(), "want", "-rw-------")
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.IO(path, err)
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return errs.Config("parse " + filepath.Base(path) + ": " + err.Error())
	}
	return nil
}

// applyEnv overlays environment variables, the second-highest layer.
func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.Workspace, "MINICLAW_WORKSPACE")
	setString(&c.Provider, "MINICLAW_PROVIDER")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.Local.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.Local.Model, "OLLAMA_MODEL")
	setString(&c.Channels.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Channels.Discord.Token, "DISCORD_BOT_TOKEN")
	setString(&c.Channels.Slack.BotToken, "SLACK_BOT_TOKEN")
	setString(&c.Channels.Slack.AppToken, "SLACK_APP_TOKEN")
	setString(&c.Gateway.MetricsAddr, "MINICLAW_METRICS_ADDR")

	if v := strings.TrimSpace(os.Getenv("MINICLAW_ALLOW_FROM")); v != "" {
		parts := strings.Split(v, ",")
		allow := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				allow = append(allow, trimmed)
			}
		}
		c.Channels.AllowFrom = allow
	}
	if v := strings.TrimSpace(os.Getenv("MINICLAW_HEARTBEAT_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.HeartbeatMinutes = n
		}
	}
}

// Validate checks the resolved configuration for startup-fatal problems.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return errs.Config("provider is openai but no API key is set (OPENAI_API_KEY)")
		}
	case "local":
	default:
		return errs.Config("unknown provider " + strconv.Quote(c.Provider) + ", expected openai or local")
	}
	if c.Workspace == "" {
		return errs.Config("workspace directory is not set")
	}
	return nil
}
