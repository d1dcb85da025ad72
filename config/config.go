package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth methods selecting how /login identifiers are handled.
const (
	AuthMethodToken    = "Token"
	AuthMethodKeynotes = "Keynotes"
)

// Config holds all configuration for the gate server. It is built once at
// startup and threaded through every component; feature flags are never read
// from the environment anywhere else.
// Tags use mapstructure for Viper unmarshalling and env variable binding.
type Config struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Gate policy
	AuthMethod    string `mapstructure:"AUTH_METHOD"` // Token or Keynotes
	AllowKeysRaw  string `mapstructure:"ALLOW_KEYS"`  // comma-separated allow-listed keys
	FallbackURL   string `mapstructure:"FALLBACK_URL"`
	PassiveMode   bool   `mapstructure:"PASSIVE_MODE"`
	TestMode      bool   `mapstructure:"TEST_MODE"`
	AppendPayload bool   `mapstructure:"APPEND_PAYLOAD"`
	// ScoreOverride keeps the reference "always trust after the hard gates"
	// policy: the heuristic score is computed but overwritten to 100. Disable
	// to let the heuristic deductions take effect.
	ScoreOverride        bool `mapstructure:"SCORE_OVERRIDE"`
	SingleUseCredentials bool `mapstructure:"SINGLE_USE_CREDENTIALS"`

	// Per-OS destination URLs
	WindowsURL string `mapstructure:"WINDOWS_URL"`
	MacURL     string `mapstructure:"MACOS_URL"`
	AndroidURL string `mapstructure:"ANDROID_URL"`
	IOSURL     string `mapstructure:"IOS_URL"`
	OthersURL  string `mapstructure:"OTHERS_URL"`

	// Reputation collaborator
	ReputationPublicKey  string `mapstructure:"REPUTATION_PUBLIC_KEY"`
	ReputationSecretKey  string `mapstructure:"REPUTATION_SECRET_KEY"`
	ReputationDomainsRaw string `mapstructure:"REPUTATION_DOMAINS"` // comma-separated domain pool

	// Notification collaborator
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `mapstructure:"TELEGRAM_CHAT_ID"`

	// Payload object store
	S3Bucket   string `mapstructure:"S3_BUCKET_NAME"`
	S3FileKey  string `mapstructure:"S3_FILE_KEY"`
	S3Region   string `mapstructure:"AWS_REGION"`
	S3Endpoint string `mapstructure:"S3_ENDPOINT"` // non-empty enables path-style addressing

	// Session persistence. Empty REDIS_ADDR selects the in-memory store.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	SessionTTLHour         int `mapstructure:"SESSION_TTL_HOUR"`
	ExternalCallTimeoutSec int `mapstructure:"EXTERNAL_CALL_TIMEOUT_SEC"`

	// Derived fields, populated by LoadConfig.
	AllowKeys         []string `mapstructure:"-"`
	ReputationDomains []string `mapstructure:"-"`
}

// SessionTTL returns the session store expiry as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHour) * time.Hour
}

// ExternalCallTimeout bounds every collaborator call (reputation, payload,
// notification). There is exactly one fallback path behind each of them.
func (c *Config) ExternalCallTimeout() time.Duration {
	return time.Duration(c.ExternalCallTimeoutSec) * time.Second
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/gate/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "gate-server")
	v.SetDefault("AUTH_METHOD", AuthMethodToken)
	v.SetDefault("ALLOW_KEYS", "")
	v.SetDefault("FALLBACK_URL", "https://you-are-a-bot.com")
	v.SetDefault("PASSIVE_MODE", false)
	v.SetDefault("TEST_MODE", false)
	v.SetDefault("APPEND_PAYLOAD", false)
	v.SetDefault("SCORE_OVERRIDE", true)
	v.SetDefault("SINGLE_USE_CREDENTIALS", false)
	v.SetDefault("WINDOWS_URL", "https://example.com/windows")
	v.SetDefault("MACOS_URL", "https://example.com/mac")
	v.SetDefault("ANDROID_URL", "https://example.com/android")
	v.SetDefault("IOS_URL", "https://example.com/ios")
	v.SetDefault("OTHERS_URL", "https://example.com/others")
	v.SetDefault("REPUTATION_PUBLIC_KEY", "")
	v.SetDefault("REPUTATION_SECRET_KEY", "")
	v.SetDefault("REPUTATION_DOMAINS", "")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", "")
	v.SetDefault("S3_BUCKET_NAME", "")
	v.SetDefault("S3_FILE_KEY", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL_HOUR", 24)
	v.SetDefault("EXTERNAL_CALL_TIMEOUT_SEC", 5)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.AuthMethod != AuthMethodToken && cfg.AuthMethod != AuthMethodKeynotes {
		return nil, fmt.Errorf("invalid AUTH_METHOD %q: must be %q or %q",
			cfg.AuthMethod, AuthMethodToken, AuthMethodKeynotes)
	}

	cfg.AllowKeys = splitList(cfg.AllowKeysRaw)
	cfg.ReputationDomains = splitList(cfg.ReputationDomainsRaw)

	return &cfg, nil
}

// splitList turns a comma-separated env value into a trimmed slice, dropping
// empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
