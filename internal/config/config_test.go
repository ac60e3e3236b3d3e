package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Polling.WatchInterval)
	assert.Equal(t, "admin", cfg.Auth.DefaultAdminUsername)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.UseMemoryStore())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("DATABASE_URL", "postgres://localhost/servicehub")
	t.Setenv("LLR_POLL_INTERVAL", "1m")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.False(t, cfg.UseMemoryStore())
	assert.Equal(t, time.Minute, cfg.Polling.LLRInterval)
}

func TestApplyFile_OverridesEnv(t *testing.T) {
	t.Setenv("PORT", "8088")
	path := filepath.Join(t.TempDir(), "servicehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\nlogging:\n  level: debug\n"), 0o600))

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyFile(path))

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their decoded value
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.Auth.JWTSecret, "development gets a generated secret")

	prod := *cfg
	prod.Environment = "production"
	prod.Auth.JWTSecret = ""
	assert.Error(t, prod.Validate())

	bad := *cfg
	bad.Server.Port = 0
	assert.Error(t, bad.Validate())
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{Server: ServerConfig{CORSOrigins: "http://a.test, http://b.test,"}}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
}

func TestTrustedProxies(t *testing.T) {
	cfg := &Config{RateLimit: RateLimitConfig{TrustedProxies: "10.0.0.0/8, 127.0.0.1"}}
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies())
	assert.Empty(t, (&Config{}).TrustedProxies())
}
