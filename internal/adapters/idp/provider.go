package idp

// Package idp adapts the identity provider and backend token endpoint for the
// OERMS authentication core: authorization URL construction, the PKCE code
// exchange, silent refresh, and verified identity decoding.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/pkce"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

// Compile-time conformance to the auth ports.
var (
	_ ports.AuthorizeURLBuilder = (*Provider)(nil)
	_ ports.TokenExchanger      = (*Provider)(nil)
	_ ports.IdentityDecoder     = (*Provider)(nil)
)

// defaultExpiry is applied when the token response carries no expiry.
const defaultExpiry = time.Hour

// Provider implements the authorize-URL, exchange, refresh, and decode ports
// against a single identity provider.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	roles      ports.RoleMapper

	verifier *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the identity provider adapter.
type ProviderConfig struct {
	// AuthServerBase is the provider origin; authorize and token endpoints
	// are fixed at {base}/oauth2/authorize and {base}/oauth2/token.
	AuthServerBase string
	// DiscoveryURL locates the OIDC discovery document used to fetch the
	// signing keys for token verification.
	DiscoveryURL string
	ClientID     string
	RedirectURL  string
	Scope        string
	// ExchangeTimeout bounds every token-endpoint call. Timeouts are treated
	// by callers exactly like network failures.
	ExchangeTimeout time.Duration
	// Roles derives application roles from group claims when the token does
	// not carry roles directly. Optional.
	Roles ports.RoleMapper
	// HTTPClient is optional; a timeout-bounded default is used otherwise.
	HTTPClient *http.Client
}

// NewProvider validates the configuration and fetches the provider's signing
// keys via discovery.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.AuthServerBase == "" {
		return nil, errors.New("auth server base is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.Scope == "" {
		return nil, errors.New("scope is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	timeout := cfg.ExchangeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	base := strings.TrimSuffix(cfg.AuthServerBase, "/")
	p := &Provider{
		httpClient: httpClient,
		timeout:    timeout,
		roles:      cfg.Roles,
		config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/oauth2/authorize",
				TokenURL: base + "/oauth2/token",
			},
		},
	}

	// Single discovery fetch for the JWKS-backed verifier.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	// Access tokens are audienced for the resource servers, not the client
	// id, so the audience check is skipped here.
	p.verifier = op.Verifier(&gooidc.Config{SkipClientIDCheck: true})

	return p, nil
}

// BuildAuthorizeURL constructs the identity provider redirect embedding the
// PKCE challenge and anti-CSRF state. Deterministic given its inputs.
func (p *Provider) BuildAuthorizeURL(challenge, state string) (string, error) {
	if challenge == "" {
		return "", errors.New("code challenge is required")
	}
	if state == "" {
		return "", errors.New("state is required")
	}

	return p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.ChallengeMethod),
	), nil
}

// Exchange redeems an authorization code together with its PKCE verifier at
// the token endpoint. Exactly one endpoint call per invocation.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (domainauth.TokenRecord, error) {
	if code == "" {
		return domainauth.TokenRecord{}, errors.New("authorization code is required")
	}
	if verifier == "" {
		return domainauth.TokenRecord{}, errors.New("code verifier is required")
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	tok, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domainauth.TokenRecord{}, fmt.Errorf("exchange code for token: %w", err)
	}

	return tokenRecord(tok, ""), nil
}

// Refresh renews an access token using the refresh token. When the provider
// rotates refresh tokens the new one is kept; otherwise the old one carries
// forward.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenRecord, error) {
	if refreshToken == "" {
		return domainauth.TokenRecord{}, errors.New("refresh token is required")
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	tok, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return domainauth.TokenRecord{}, fmt.Errorf("refresh token: %w", err)
	}

	return tokenRecord(tok, refreshToken), nil
}

// Decode verifies the access token signature against the provider's signing
// keys and maps the claims into a UserRecord.
func (p *Provider) Decode(ctx context.Context, accessToken string) (domainauth.UserRecord, error) {
	if accessToken == "" {
		return domainauth.UserRecord{}, errors.New("access token is required")
	}

	idTok, err := p.verifier.Verify(ctx, accessToken)
	if err != nil {
		return domainauth.UserRecord{}, fmt.Errorf("verify token: %w", err)
	}

	var claims tokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.UserRecord{}, fmt.Errorf("parse token claims: %w", claimsErr)
	}

	return p.mapClaims(claims), nil
}

// tokenClaims is a superset of the claim shapes the OERMS backend and common
// identity providers emit.
type tokenClaims struct {
	Sub               string   `json:"sub"`
	PreferredUsername string   `json:"preferred_username"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	Roles             []string `json:"roles"`
	Authorities       []string `json:"authorities"`
	Groups            []string `json:"groups"`
}

func (p *Provider) mapClaims(c tokenClaims) domainauth.UserRecord {
	roles := c.Roles
	if len(roles) == 0 && p.roles != nil {
		roles = p.roles.Map(c.Groups)
	}

	return domainauth.UserRecord{
		ID:          c.Sub,
		Username:    firstNonEmpty(c.PreferredUsername, c.Username, c.Sub),
		Email:       c.Email,
		Roles:       roles,
		Authorities: c.Authorities,
	}
}

// callContext bounds a token-endpoint call and routes it through the
// configured HTTP client.
func (p *Provider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return context.WithTimeout(ctx, p.timeout)
}

func tokenRecord(tok *oauth2.Token, previousRefresh string) domainauth.TokenRecord {
	expiresAt := time.Now().Add(defaultExpiry)
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	return domainauth.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
