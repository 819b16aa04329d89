package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "./sessions", cfg.SessionsDir)
	assert.True(t, cfg.MarkSeen)
	assert.True(t, cfg.RecoverSessions)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Port, cfg.Port)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
port: 8080
api_key: secret
sessions_dir: /var/lib/chatwire/sessions
base_webhook_url: https://hooks.example.com/events
webhook_urls:
  tenant-a: https://a.example.com/hook
disabled_callbacks:
  - message_ack
  - "group_*"
mark_seen: false
max_attachment_bytes: 500000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "/var/lib/chatwire/sessions", cfg.SessionsDir)
	assert.Equal(t, []string{"message_ack", "group_*"}, cfg.DisabledCallbacks)
	assert.False(t, cfg.MarkSeen)
	assert.Equal(t, int64(500000), cfg.MaxAttachmentBytes)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a port"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHATWIRE_PORT", "9999")
	t.Setenv("CHATWIRE_API_KEY", "env-key")
	t.Setenv("CHATWIRE_MARK_SEEN", "false")
	t.Setenv("CHATWIRE_DISABLED_CALLBACKS", "message, qr")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.False(t, cfg.MarkSeen)
	assert.Equal(t, []string{"message", "qr"}, cfg.DisabledCallbacks)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"empty sessions dir", func(c *Config) { c.SessionsDir = "" }, true},
		{"zero webhook timeout", func(c *Config) { c.WebhookTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWebhookURLPrecedence(t *testing.T) {
	cfg := Default()
	cfg.BaseWebhookURL = "https://base.example.com"
	cfg.WebhookURLs = map[string]string{"tenant-a": "https://a.example.com"}

	assert.Equal(t, "https://a.example.com", cfg.WebhookURL("tenant-a"))
	assert.Equal(t, "https://base.example.com", cfg.WebhookURL("tenant-b"))

	t.Setenv("CHATWIRE_TENANT_A_WEBHOOK_URL", "https://env.example.com")
	assert.Equal(t, "https://env.example.com", cfg.WebhookURL("tenant-a"))
}

func TestWebhookURLUnconfigured(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "", cfg.WebhookURL("nobody"))
}
