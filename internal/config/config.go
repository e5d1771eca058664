package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SeenStoreMemory   = "memory"
	SeenStoreDynamoDB = "dynamodb"
	SeenStoreRedis    = "redis"
)

// Config holds application configuration
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	PollInterval time.Duration
	PollSchedule string
	RunOnStart   bool
	TickTimeout  time.Duration
	HTTPTimeout  time.Duration

	BonzoBaseURL string
	BonzoToken   string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
	SystemPrompt  string

	CounterpartySender string
	ParamPrefix        string

	SeenStore      string
	StateTable     string
	StateTTL       time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment values win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "3000"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),

		PollInterval: getEnvAsDuration("POLL_INTERVAL", 15*time.Second),
		PollSchedule: strings.TrimSpace(getEnv("POLL_SCHEDULE", "")),
		RunOnStart:   getEnvAsBool("RUN_ON_START", true),
		TickTimeout:  getEnvAsDuration("TICK_TIMEOUT", 2*time.Minute),
		HTTPTimeout:  getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),

		BonzoBaseURL: getEnv("BONZO_BASE_URL", "https://app.getbonzo.com/api/v3"),
		BonzoToken:   getEnv("BONZO_TOKEN", ""),

		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		SystemPrompt:  getEnv("SYSTEM_PROMPT", ""),

		CounterpartySender: getEnv("COUNTERPARTY_SENDER", "lead"),
		ParamPrefix:        strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),

		SeenStore:      strings.ToLower(strings.TrimSpace(getEnv("SEEN_STORE", SeenStoreMemory))),
		StateTable:     getEnv("STATE_TABLE", ""),
		StateTTL:       getEnvAsDuration("STATE_TTL", 0),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "lead-responder:"),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.BonzoToken == "" && c.ParamPrefix == "" {
		errs = append(errs, errors.New("BONZO_TOKEN is required when PARAM_PREFIX is not set"))
	}
	if c.OpenAIAPIKey == "" && c.ParamPrefix == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required when PARAM_PREFIX is not set"))
	}
	if c.PollSchedule == "" && c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.TickTimeout <= 0 {
		errs = append(errs, errors.New("TICK_TIMEOUT must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	switch c.SeenStore {
	case SeenStoreMemory:
	case SeenStoreDynamoDB:
		if c.StateTable == "" {
			errs = append(errs, errors.New("STATE_TABLE is required when SEEN_STORE=dynamodb"))
		}
	case SeenStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when SEEN_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("SEEN_STORE must be one of memory, dynamodb, redis; got %q", c.SeenStore))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Durable reports whether seen-state outlives the process.
func (c *Config) Durable() bool {
	return c.SeenStore == SeenStoreDynamoDB || c.SeenStore == SeenStoreRedis
}

// Schedule returns the cron expression for the poller.
func (c *Config) Schedule() string {
	if c.PollSchedule != "" {
		return c.PollSchedule
	}
	return "@every " + c.PollInterval.String()
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	// Bare numbers are seconds.
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
