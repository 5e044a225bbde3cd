package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresTimezone(t *testing.T) {
	t.Setenv("TZ", "")
	t.Setenv("APP_TZ", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("APP_API_KEY", "secret")
	t.Setenv("APP_SEGMENT_WRITE_KEY", "wk-123")
	t.Setenv("APP_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("APP_LOG_LEVEL", "warn")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.TZ)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "wk-123", cfg.SegmentWriteKey)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Production())
}

func TestLoadAppPrefixedTimezoneFallback(t *testing.T) {
	t.Setenv("TZ", "")
	t.Setenv("APP_TZ", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.TZ)
}

func TestLoadPlainTZWins(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("APP_TZ", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.TZ)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("TZ", "Not/AZone")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TZ", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "noKey", cfg.SegmentWriteKey)
	assert.True(t, cfg.PageStrict)
	assert.Equal(t, "default", cfg.SourceName)
	assert.False(t, cfg.Production())
}

func TestCookieDomainStripsPort(t *testing.T) {
	cfg := Config{BaseDomain: "localhost:8000"}
	assert.Equal(t, "localhost", cfg.CookieDomain())

	cfg.BaseDomain = "tracking.example.com"
	assert.Equal(t, "tracking.example.com", cfg.CookieDomain())
}
