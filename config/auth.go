package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses the real identity provider (authorization code + PKCE).
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses the local dev auth provider (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains identity provider configuration.
type OAuthConfig struct {
	// AuthServerBase is the provider origin; authorize and token endpoints
	// live at fixed paths beneath it.
	AuthServerBase string `env:"SERVER_BASE"   envDefault:"http://localhost:9000"`
	// DiscoveryURL locates the OIDC discovery document for signing keys.
	DiscoveryURL string `env:"DISCOVERY_URL"`
	ClientID     string `env:"CLIENT_ID"     envDefault:"oerms-ui"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
}

// DevAuthConfig controls the mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID   string   `env:"USER_ID"  envDefault:"dev-user"`
	Username string   `env:"USERNAME" envDefault:"dev"`
	Email    string   `env:"EMAIL"    envDefault:"dev@example.com"`
	Roles    []string `env:"ROLES"    envDefault:"ROLE_ADMIN"       envSeparator:";"`
	// TokenDuration is how long a minted dev token lives.
	TokenDuration time.Duration `env:"TOKEN_DURATION" envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Group-to-role mapping for providers that expose only group claims.
	// Roles carried directly in the token always win. Empty groups never
	// match.
	AdminGroup   string `env:"ADMIN_GROUP"`
	TeacherGroup string `env:"TEACHER_GROUP"`
	StudentGroup string `env:"STUDENT_GROUP"`
}
