package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.HTTPPort)
	assert.Equal(t, AuthMethodToken, cfg.AuthMethod)
	assert.Equal(t, "https://you-are-a-bot.com", cfg.FallbackURL)
	assert.False(t, cfg.PassiveMode)
	assert.False(t, cfg.TestMode)
	assert.True(t, cfg.ScoreOverride)
	assert.False(t, cfg.SingleUseCredentials)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 5*time.Second, cfg.ExternalCallTimeout())
	assert.Empty(t, cfg.AllowKeys)
	assert.Empty(t, cfg.ReputationDomains)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("AUTH_METHOD", AuthMethodKeynotes)
	t.Setenv("ALLOW_KEYS", "KEY1, KEY2 ,,KEY3")
	t.Setenv("REPUTATION_DOMAINS", "https://a.example.com,https://b.example.com")
	t.Setenv("PASSIVE_MODE", "true")
	t.Setenv("SESSION_TTL_HOUR", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, AuthMethodKeynotes, cfg.AuthMethod)
	assert.Equal(t, []string{"KEY1", "KEY2", "KEY3"}, cfg.AllowKeys)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.ReputationDomains)
	assert.True(t, cfg.PassiveMode)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL())
}

func TestLoadConfig_InvalidAuthMethod(t *testing.T) {
	t.Setenv("AUTH_METHOD", "Magic")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid AUTH_METHOD")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList("a"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,"))
}
