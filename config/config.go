package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Identity provider and dev auth configuration
//   - session.go: Session lifecycle windows
//   - policy.go: Policy endpoint configuration
//   - database.go: Redis and Postgres configuration
//   - http.go: HTTP server configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Session lifecycle configuration
	Session SessionConfig

	// Policy evaluation configuration
	Policy PolicyConfig

	// TokenStoreBackend selects where token records live.
	TokenStoreBackend TokenStoreBackend `env:"TOKEN_STORE_BACKEND" envDefault:"redis"`

	// Storage configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// TokenStoreBackend names a durability tier for token records.
type TokenStoreBackend string

const (
	// TokenStoreRedis keeps records in Redis with a TTL (default).
	TokenStoreRedis TokenStoreBackend = "redis"
	// TokenStorePostgres keeps records in Postgres, surviving cache flushes.
	TokenStorePostgres TokenStoreBackend = "postgres"
	// TokenStoreMemory keeps records in process memory (dev/test only).
	TokenStoreMemory TokenStoreBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for TokenStoreBackend.
func (b *TokenStoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "redis", "postgres", "memory":
		*b = TokenStoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid TokenStoreBackend: %q (valid options: redis, postgres, memory)", v)
	}
}

// Sanitize applies guardrails to configuration values loaded from env.
// It should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Session.Sanitize()
	c.Policy.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if c.IsDev {
		return
	}
	nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
	if nodeEnv == "development" || nodeEnv == "dev" {
		c.IsDev = true
	}
}
