// Package config defines the global configuration structure for the NeuraSlide
// webhook service. Configuration is loaded once at process initialization and
// is immutable thereafter, following 12-Factor principles: values come from
// the OS environment, with a local .env file as a development convenience.
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"time"

	"neuraslide/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the webhook service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Instagram InstagramConfig
	Stripe    StripeConfig
	AI        AIConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// RedisConfig holds the connection settings for the duplicate-delivery guard.
// Addr may be empty, in which case the in-memory guard is used instead.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password SecretString  `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	DedupTTL time.Duration `envconfig:"DEDUP_TTL" default:"24h"`
}

// InstagramConfig holds Meta platform credentials for webhook verification
// and Graph API calls.
type InstagramConfig struct {
	AppSecret   SecretString  `envconfig:"INSTAGRAM_APP_SECRET"`
	VerifyToken SecretString  `envconfig:"INSTAGRAM_VERIFY_TOKEN" validate:"required"`
	GraphAPIURL string        `envconfig:"INSTAGRAM_GRAPH_API_URL" default:"https://graph.instagram.com"`
	Timeout     time.Duration `envconfig:"INSTAGRAM_TIMEOUT" default:"10s"`
}

// StripeConfig holds Stripe webhook verification credentials.
type StripeConfig struct {
	WebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
}

// AIConfig holds the text-generation collaborator settings. APIKey may be
// empty; response generation then falls back to the fixed acknowledgement
// pool.
type AIConfig struct {
	APIKey    SecretString  `envconfig:"AI_API_KEY"`
	BaseURL   string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com"`
	Model     string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Timeout   time.Duration `envconfig:"AI_TIMEOUT" default:"20s"`
	MaxTokens int           `envconfig:"AI_MAX_TOKENS" default:"256"`
}
