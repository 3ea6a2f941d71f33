package config

import "time"

// SessionConfig controls the token/session lifecycle windows.
type SessionConfig struct {
	// RefreshLeeway triggers a silent refresh when the access token expires
	// inside this window.
	RefreshLeeway time.Duration `env:"SESSION_REFRESH_LEEWAY" envDefault:"30s"`

	// ExchangeTimeout bounds every token-endpoint call (exchange and refresh).
	ExchangeTimeout time.Duration `env:"SESSION_EXCHANGE_TIMEOUT" envDefault:"10s"`

	// StateTTL is how long a pending login attempt (state + verifier) is kept
	// before it expires on its own.
	StateTTL time.Duration `env:"SESSION_STATE_TTL" envDefault:"10m"`

	// TokenGrace extends token-record retention past the access-token expiry
	// so an expired record can still be refreshed.
	TokenGrace time.Duration `env:"SESSION_TOKEN_GRACE" envDefault:"5m"`
}

// Sanitize clamps lifecycle windows to sane values.
func (c *SessionConfig) Sanitize() {
	if c.RefreshLeeway <= 0 {
		c.RefreshLeeway = 30 * time.Second
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = 10 * time.Second
	}
	if c.StateTTL <= 0 {
		c.StateTTL = 10 * time.Minute
	}
	// A grace shorter than the leeway would expire records while a refresh
	// for them is still being attempted.
	if c.TokenGrace < c.RefreshLeeway {
		c.TokenGrace = 5 * time.Minute
	}
}
