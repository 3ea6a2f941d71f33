package ports

// Package ports defines interfaces (hexagonal ports) for the authentication
// core. Implementations live in internal/adapters; orchestration in
// internal/service.

import (
	"context"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
)

// TokenStore persists the atomic TokenRecord for one browser scope (sid).
// Load returns (nil, nil) when no record exists; a corrupt stored value is
// treated as absent and self-healed by deletion. Clear is idempotent.
type TokenStore interface {
	Save(ctx context.Context, sid string, rec domainauth.TokenRecord) error
	Load(ctx context.Context, sid string) (*domainauth.TokenRecord, error)
	Clear(ctx context.Context, sid string) error
}

// StateStore persists the single-use protocol state of one login attempt.
// Load returns (nil, nil) when absent. Clear is idempotent.
type StateStore interface {
	Save(ctx context.Context, sid string, st domainauth.ProtocolState) error
	Load(ctx context.Context, sid string) (*domainauth.ProtocolState, error)
	Clear(ctx context.Context, sid string) error
}

// AuthorizeURLBuilder constructs the identity provider redirect for a login
// attempt, binding the PKCE challenge and anti-CSRF state.
type AuthorizeURLBuilder interface {
	BuildAuthorizeURL(challenge, state string) (string, error)
}

// TokenExchanger completes and renews the code flow against the backend
// token endpoint.
type TokenExchanger interface {
	// Exchange redeems an authorization code with its PKCE verifier.
	Exchange(ctx context.Context, code, verifier string) (domainauth.TokenRecord, error)

	// Refresh renews an access token using the stored refresh token.
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenRecord, error)
}

// IdentityDecoder verifies an access token and decodes it into a UserRecord.
type IdentityDecoder interface {
	Decode(ctx context.Context, accessToken string) (domainauth.UserRecord, error)
}

// PolicyClient asks the backend for an allow/deny decision. Implementations
// attach the caller's bearer token; callers own the fail-closed handling.
type PolicyClient interface {
	Evaluate(ctx context.Context, accessToken string, q domainauth.PolicyQuery) (bool, error)
}

// RoleMapper derives application roles from provider group claims, used when
// the token does not carry roles directly.
type RoleMapper interface {
	Map(groups []string) []string
}
