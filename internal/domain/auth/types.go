package auth

// Package auth contains domain-level types for the OERMS authentication core.
// It is pure and free of framework/adapter concerns.

import "time"

// Role is an application authorization role carried in token claims.
// Keep string form for easy persistence and JSON transport.
type Role string

const (
	RoleAdmin   Role = "ROLE_ADMIN"
	RoleTeacher Role = "ROLE_TEACHER"
	RoleStudent Role = "ROLE_STUDENT"
)

// UserRecord is the authenticated principal decoded from a verified token.
// Adapters map provider-specific claims into this shape.
type UserRecord struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Authorities []string `json:"authorities"`
}

// TokenRecord is the atomic unit of token storage: access and refresh tokens
// are written and cleared together, never partially.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the record's access token is past its expiry.
func (t TokenRecord) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires inside the given
// window. Used to trigger a refresh ahead of hard expiry.
func (t TokenRecord) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !now.Add(window).Before(t.ExpiresAt)
}

// ProtocolState holds the single-use artifacts of one login attempt: the
// anti-CSRF state and the PKCE verifier. It is created immediately before the
// redirect to the identity provider and destroyed exactly once by the
// callback handler, whether the attempt succeeds or fails.
type ProtocolState struct {
	State       string    `json:"state"`
	Verifier    string    `json:"verifier"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is the application's view of who (if anyone) is authenticated.
// It is derived from the TokenRecord, never independently mutable.
// IsAuthenticated implies User is non-nil and the underlying record was
// present and unexpired at resolution time.
type Session struct {
	User            *UserRecord `json:"user"`
	IsAuthenticated bool        `json:"is_authenticated"`
	IsLoading       bool        `json:"is_loading"`
	// ExpiresAt is the access-token expiry behind an authenticated session.
	// Zero when unauthenticated.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// PendingSession is the session value before the initial resolution
// completes. Every resolution path returns IsLoading false.
func PendingSession() Session {
	return Session{IsLoading: true}
}

// Unauthenticated is the terminal signed-out session value.
func Unauthenticated() Session {
	return Session{}
}

// Authenticated builds a resolved, signed-in session for the given user.
func Authenticated(user UserRecord) Session {
	return Session{User: &user, IsAuthenticated: true}
}

// HasRole reports membership of role in the user's role set.
// It is false for every role, including the empty string, when no user is
// present.
func (s Session) HasRole(role string) bool {
	if s.User == nil {
		return false
	}
	for _, r := range s.User.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAuthority reports membership of authority in the user's authority set.
func (s Session) HasAuthority(authority string) bool {
	if s.User == nil {
		return false
	}
	for _, a := range s.User.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// PolicyQuery identifies one authorization question: may the current session
// perform Action on Resource, given optional Context.
type PolicyQuery struct {
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	Context  map[string]any `json:"context,omitempty"`
}

// Decision is the outcome of a policy evaluation. It has no identity beyond
// the query that produced it and is never persisted.
type Decision struct {
	Allowed bool `json:"allowed"`
}
