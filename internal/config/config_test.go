package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "POLL_INTERVAL", "POLL_SCHEDULE", "RUN_ON_START",
	"TICK_TIMEOUT", "HTTP_TIMEOUT", "BONZO_BASE_URL", "BONZO_TOKEN", "OPENAI_BASE_URL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "SYSTEM_PROMPT", "COUNTERPARTY_SENDER", "PARAM_PREFIX",
	"SEEN_STORE", "STATE_TABLE", "STATE_TTL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"REDIS_KEY_PREFIX",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 15*time.Second, cfg.PollInterval)
	require.True(t, cfg.RunOnStart)
	require.Equal(t, 2*time.Minute, cfg.TickTimeout)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.Equal(t, "https://app.getbonzo.com/api/v3", cfg.BonzoBaseURL)
	require.Equal(t, "gpt-3.5-turbo", cfg.OpenAIModel)
	require.Equal(t, "lead", cfg.CounterpartySender)
	require.Equal(t, SeenStoreMemory, cfg.SeenStore)
	require.Equal(t, "lead-responder:", cfg.RedisKeyPrefix)
	require.Zero(t, cfg.StateTTL)
	require.Equal(t, "@every 15s", cfg.Schedule())
	require.False(t, cfg.Durable())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_FORMAT", "Text")
	t.Setenv("POLL_INTERVAL", "30")
	t.Setenv("POLL_SCHEDULE", "*/1 * * * *")
	t.Setenv("RUN_ON_START", "false")
	t.Setenv("TICK_TIMEOUT", "45s")
	t.Setenv("PARAM_PREFIX", "/lead-responder/prod/")
	t.Setenv("SEEN_STORE", " DynamoDB ")
	t.Setenv("STATE_TABLE", "lead-state")
	t.Setenv("STATE_TTL", "720h")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, 30*time.Second, cfg.PollInterval)
	require.False(t, cfg.RunOnStart)
	require.Equal(t, 45*time.Second, cfg.TickTimeout)
	require.Equal(t, "/lead-responder/prod", cfg.ParamPrefix)
	require.Equal(t, SeenStoreDynamoDB, cfg.SeenStore)
	require.Equal(t, 720*time.Hour, cfg.StateTTL)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, "*/1 * * * *", cfg.Schedule())
	require.True(t, cfg.Durable())
	require.NoError(t, cfg.Validate())
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("REDIS_DB", "three")
	t.Setenv("RUN_ON_START", "maybe")

	cfg := Load()
	require.Equal(t, 15*time.Second, cfg.PollInterval)
	require.Zero(t, cfg.RedisDB)
	require.True(t, cfg.RunOnStart)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PollInterval: 15 * time.Second,
			TickTimeout:  time.Minute,
			HTTPTimeout:  10 * time.Second,
			BonzoToken:   "b",
			OpenAIAPIKey: "o",
			SeenStore:    SeenStoreMemory,
		}
	}
	require.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing bonzo token", func(c *Config) { c.BonzoToken = "" }, "BONZO_TOKEN"},
		{"missing openai key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }, "POLL_INTERVAL"},
		{"zero tick timeout", func(c *Config) { c.TickTimeout = 0 }, "TICK_TIMEOUT"},
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }, "HTTP_TIMEOUT"},
		{"dynamodb without table", func(c *Config) { c.SeenStore = SeenStoreDynamoDB }, "STATE_TABLE"},
		{"redis without addr", func(c *Config) { c.SeenStore = SeenStoreRedis }, "REDIS_ADDR"},
		{"unknown store", func(c *Config) { c.SeenStore = "sqlite" }, "SEEN_STORE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_SecretsFromParamStore(t *testing.T) {
	cfg := &Config{
		PollSchedule: "@every 1m",
		TickTimeout:  time.Minute,
		HTTPTimeout:  time.Second,
		ParamPrefix:  "/lead-responder",
		SeenStore:    SeenStoreMemory,
	}
	require.NoError(t, cfg.Validate())
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	err := (&Config{SeenStore: SeenStoreMemory}).Validate()
	require.Error(t, err)
	for _, key := range []string{"BONZO_TOKEN", "OPENAI_API_KEY", "POLL_INTERVAL", "TICK_TIMEOUT", "HTTP_TIMEOUT"} {
		require.Contains(t, err.Error(), key)
	}
}
