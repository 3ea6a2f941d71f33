package devauth

// Package devauth provides a config-driven identity provider stand-in for
// local development. It short-circuits the OAuth redirect by pointing the
// authorize URL back at our own callback and mints opaque local tokens.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

var (
	_ ports.AuthorizeURLBuilder = (*Provider)(nil)
	_ ports.TokenExchanger      = (*Provider)(nil)
	_ ports.IdentityDecoder     = (*Provider)(nil)
)

// Config controls the dev auth provider behavior.
type Config struct {
	UserID      string
	Username    string
	Email       string
	Roles       []string
	Authorities []string
	// TokenDuration defaults to 8h when zero.
	TokenDuration time.Duration
}

// Provider implements the authorize/exchange/decode ports for development.
// Exchange ignores the code and returns locally minted tokens; Decode maps
// any token it minted back to the configured identity.
type Provider struct {
	user     domainauth.UserRecord
	duration time.Duration

	mu     sync.Mutex
	issued map[string]struct{}
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}

	dur := cfg.TokenDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}

	username := cfg.Username
	if username == "" {
		username = cfg.UserID
	}

	return &Provider{
		user: domainauth.UserRecord{
			ID:          cfg.UserID,
			Username:    username,
			Email:       cfg.Email,
			Roles:       append([]string(nil), cfg.Roles...),
			Authorities: append([]string(nil), cfg.Authorities...),
		},
		duration: dur,
		issued:   make(map[string]struct{}),
	}, nil
}

// BuildAuthorizeURL returns a local callback URL so the browser round-trips
// through the standard callback handler without leaving the app.
func (p *Provider) BuildAuthorizeURL(_, state string) (string, error) {
	if state == "" {
		return "", errors.New("state is required")
	}
	return "/auth/callback?code=dev&state=" + state, nil
}

// Exchange ignores the code (state validation is the callback handler's job)
// and mints a fresh local token record.
func (p *Provider) Exchange(_ context.Context, _, _ string) (domainauth.TokenRecord, error) {
	return p.mint()
}

// Refresh mints a fresh record, same as Exchange.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (domainauth.TokenRecord, error) {
	if refreshToken == "" {
		return domainauth.TokenRecord{}, errors.New("refresh token is required")
	}
	return p.mint()
}

// Decode returns the configured identity for tokens this provider minted.
func (p *Provider) Decode(_ context.Context, accessToken string) (domainauth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.issued[accessToken]; !ok {
		return domainauth.UserRecord{}, errors.New("unknown dev token")
	}
	return p.user, nil
}

func (p *Provider) mint() (domainauth.TokenRecord, error) {
	access, err := randomToken()
	if err != nil {
		return domainauth.TokenRecord{}, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := randomToken()
	if err != nil {
		return domainauth.TokenRecord{}, fmt.Errorf("mint refresh token: %w", err)
	}

	p.mu.Lock()
	p.issued[access] = struct{}{}
	p.mu.Unlock()

	return domainauth.TokenRecord{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(p.duration),
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "dev-" + base64.RawURLEncoding.EncodeToString(b), nil
}
