// Package config loads and validates the chatwire service configuration
// from a YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration surface consumed by the service.
type Config struct {
	// HTTP listener
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// APIKey is sent with every outbound webhook call in the x-api-key header.
	APIKey string `yaml:"api_key"`

	// SessionsDir is the credential root: one session-<id> directory per tenant.
	SessionsDir string `yaml:"sessions_dir"`

	// BaseWebhookURL is the default destination for event webhooks.
	// Per-session overrides take precedence, see WebhookURL.
	BaseWebhookURL string            `yaml:"base_webhook_url"`
	WebhookURLs    map[string]string `yaml:"webhook_urls"`
	WebhookTimeout time.Duration     `yaml:"webhook_timeout"`

	// MaxAttachmentBytes caps the size of message attachments that are
	// downloaded and forwarded inline as a separate media webhook event.
	MaxAttachmentBytes int64 `yaml:"max_attachment_bytes"`

	// MarkSeen sends a read receipt for incoming messages and acks.
	MarkSeen bool `yaml:"mark_seen"`

	// DisabledCallbacks lists event names (glob patterns allowed) that are
	// never forwarded. Checked once per session at event wiring time.
	DisabledCallbacks []string `yaml:"disabled_callbacks"`

	// RecoverSessions restarts a session when its browser page crashes.
	RecoverSessions bool `yaml:"recover_sessions"`

	// Browser driver options.
	Headless      bool   `yaml:"headless"`
	ClientURL     string `yaml:"client_url"`
	ClientVersion string `yaml:"client_version"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               3000,
		SessionsDir:        "./sessions",
		WebhookTimeout:     10 * time.Second,
		MaxAttachmentBytes: 10_000_000,
		MarkSeen:           true,
		RecoverSessions:    true,
		Headless:           true,
		ClientURL:          "https://web.whatsapp.com",
	}
}

// Load reads the configuration file at path (if it exists), applies
// environment overrides, and validates the result. An empty path or a
// missing file yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays CHATWIRE_* environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("CHATWIRE_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("CHATWIRE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("CHATWIRE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CHATWIRE_SESSIONS_DIR"); v != "" {
		c.SessionsDir = v
	}
	if v := os.Getenv("CHATWIRE_BASE_WEBHOOK_URL"); v != "" {
		c.BaseWebhookURL = v
	}
	if v := os.Getenv("CHATWIRE_DISABLED_CALLBACKS"); v != "" {
		c.DisabledCallbacks = splitList(v)
	}
	if v := os.Getenv("CHATWIRE_MARK_SEEN"); v != "" {
		c.MarkSeen = isTruthy(v)
	}
	if v := os.Getenv("CHATWIRE_RECOVER_SESSIONS"); v != "" {
		c.RecoverSessions = isTruthy(v)
	}
	if v := os.Getenv("CHATWIRE_HEADLESS"); v != "" {
		c.Headless = isTruthy(v)
	}
	if v := os.Getenv("CHATWIRE_MAX_ATTACHMENT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxAttachmentBytes = n
		}
	}
	if v := os.Getenv("CHATWIRE_CLIENT_URL"); v != "" {
		c.ClientURL = v
	}
	if v := os.Getenv("CHATWIRE_CLIENT_VERSION"); v != "" {
		c.ClientVersion = v
	}
}

// Validate checks the configuration for values that would prevent startup.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SessionsDir == "" {
		return fmt.Errorf("sessions_dir cannot be empty")
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook_timeout must be positive")
	}
	return nil
}

// WebhookURL resolves the webhook destination for a session id.
// Precedence: CHATWIRE_<ID>_WEBHOOK_URL environment variable, then the
// webhook_urls map, then base_webhook_url. Returns "" when none is set.
func (c *Config) WebhookURL(sessionID string) string {
	if v := os.Getenv("CHATWIRE_" + envKey(sessionID) + "_WEBHOOK_URL"); v != "" {
		return v
	}
	if v, ok := c.WebhookURLs[sessionID]; ok && v != "" {
		return v
	}
	return c.BaseWebhookURL
}

// ListenAddr returns the host:port address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envKey normalizes a session id into an environment variable fragment.
func envKey(id string) string {
	key := strings.ToUpper(id)
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
