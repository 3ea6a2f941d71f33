package httpx

import (
	"context"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across
// packages. Centralized here so handlers and middleware share one key.
type sessionKey struct{}

// SetSessionInContext returns a child context carrying the given session.
// A nil session leaves ctx unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the session from the context and whether
// one is present.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// GetSessionFromContext retrieves the session from the request context, or
// nil when the request is unauthenticated.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	if s, ok := GetUserSessionFromContext(ctx); ok {
		return s
	}
	return nil
}
