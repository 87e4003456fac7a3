package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townchat/backend/internal/config"
)

func TestLoad_DefaultsAndEnvironment(t *testing.T) {
	t.Setenv("TOWNCHAT_AUTH_SECRET", "env-secret")
	t.Setenv("TOWNCHAT_BUS_BACKEND", "nats")
	t.Setenv("TOWNCHAT_SESSION_AUTH_TIMEOUT", "3s")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.Secret)
	assert.Equal(t, "nats", cfg.Bus.Backend)
	assert.Equal(t, 3*time.Second, cfg.Session.AuthTimeout)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, config.DefaultIdentityClaim, cfg.Auth.IdentityClaim)
	assert.Equal(t, config.DefaultTopicPrefix, cfg.Bus.TopicPrefix)
	assert.Equal(t, config.DefaultPageSize, cfg.Session.DefaultPageSize)
	assert.Equal(t, config.MaxPageSize, cfg.Session.MaxPageSize)
	assert.Equal(t, config.DefaultResourceTimeout, cfg.Resources.Timeout)
	assert.Equal(t, "http://onlineshop-service:8000/api", cfg.Resources.Product.BaseURL)
	assert.Contains(t, cfg.Resources.Announcement.ContentURL, "%s")
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "townchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  secret: file-secret
  issuer: identity-service
bus:
  backend: memory
  topic_prefix: room_
session:
  max_page_size: 20
  default_page_size: 10
server:
  allowed_origins: ["chat.example", "admin.example"]
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-secret", cfg.Auth.Secret)
	assert.Equal(t, "identity-service", cfg.Auth.Issuer)
	assert.Equal(t, "memory", cfg.Bus.Backend)
	assert.Equal(t, "room_", cfg.Bus.TopicPrefix)
	assert.Equal(t, 10, cfg.Session.DefaultPageSize)
	assert.Equal(t, 20, cfg.Session.MaxPageSize)
	assert.Equal(t, []string{"chat.example", "admin.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Auth:    config.AuthConfig{Secret: "s"},
			Bus:     config.BusConfig{Backend: "redis"},
			Session: config.SessionConfig{AuthTimeout: time.Second, DefaultPageSize: 50, MaxPageSize: 100},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing secret", func(c *config.Config) { c.Auth.Secret = "" }},
		{"unknown bus", func(c *config.Config) { c.Bus.Backend = "kafka" }},
		{"default above max", func(c *config.Config) { c.Session.DefaultPageSize = 200 }},
		{"negative default", func(c *config.Config) { c.Session.DefaultPageSize = -1 }},
		{"no auth timeout", func(c *config.Config) { c.Session.AuthTimeout = 0 }},
		{"negative burst", func(c *config.Config) { c.Session.CommandBurst = -1 }},
		{"negative rate", func(c *config.Config) { c.Session.CommandRate = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
