package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/service"
)

// SessionCookieName is the browser-scope cookie. Its value is an opaque sid;
// tokens never leave the server.
const SessionCookieName = "oerms_sid"

// oauthAttemptMaxAge bounds how long the sid cookie of an unfinished login
// attempt is kept by the browser.
const oauthAttemptMaxAge = 30 * 24 * time.Hour

// LoginFlow drives the authorization-code flow from the HTTP surface.
type LoginFlow interface {
	Begin(ctx context.Context, sid, redirectURI string) (string, error)
	HandleCallback(ctx context.Context, sid string, params service.CallbackParams) (service.CallbackResult, error)
}

// SessionResolver resolves and ends sessions for a browser scope.
type SessionResolver interface {
	Resolve(ctx context.Context, sid string) (domainauth.Session, error)
	Logout(ctx context.Context, sid string) error
}

// AuthHandlers provides the HTTP handlers for the login, session, and logout
// endpoints.
type AuthHandlers struct {
	Flow         LoginFlow
	Sessions     SessionResolver
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login starts a login attempt and redirects to the identity provider.
// GET /auth/login?redirect_uri=<optional relative path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	// Reuse the browser's sid when it already has one so a pending session
	// keeps its scope; otherwise mint a fresh opaque id.
	sid := h.ensureSid(w, r)

	authorizeURL, err := h.Flow.Begin(r.Context(), sid, redirectURI)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     errors.New("sign-in could not be started"),
		})
		return
	}

	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// Callback completes the login attempt from the provider redirect.
// GET /auth/callback?code=<code>&state=<state>[&error=...].
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	sid := h.sidFromRequest(r)
	if sid == "" {
		// No browser scope: the redirect cannot belong to any pending attempt.
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_session_scope",
			Err:     errors.New("no sign-in attempt is pending for this browser"),
		})
		return
	}

	q := r.URL.Query()
	result, err := h.Flow.HandleCallback(r.Context(), sid, service.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		h.writeFlowError(w, r, err)
		return
	}

	http.Redirect(w, r, safeRedirectPath(result.RedirectURI), http.StatusFound)
}

// Logout ends the browser's session. Idempotent: logging out with no session
// still succeeds and clears the cookie.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := h.sidFromRequest(r); sid != "" {
		if err := h.Sessions.Logout(r.Context(), sid); err != nil {
			// Best effort: the cookie is cleared regardless, and any leftover
			// record expires on its own TTL.
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}

	h.clearCookie(w, r, SessionCookieName)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Status reports the current authentication state.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sid := h.sidFromRequest(r)
	if sid == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	session, err := h.Sessions.Resolve(r.Context(), sid)
	if err != nil {
		// A degraded session (failed refresh, undecodable token) has already
		// been cleared server-side; the browser just sees signed-out.
		h.logger().WarnContext(r.Context(), "session resolution failed", "error", err)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	if !session.IsAuthenticated || session.User == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":          session.User.ID,
			"username":    session.User.Username,
			"email":       session.User.Email,
			"roles":       session.User.Roles,
			"authorities": session.User.Authorities,
		},
		"expires_at": session.ExpiresAt,
	})
}

// writeFlowError maps a login-flow failure to an HTTP status and a safe JSON
// body. FlowError messages are user-presentable; anything else is masked.
func (h *AuthHandlers) writeFlowError(w http.ResponseWriter, r *http.Request, err error) {
	if fe, ok := domainauth.AsFlowError(err); ok {
		h.logger().WarnContext(r.Context(), "login attempt failed",
			"kind", fe.Kind, "detail", fe.Detail)
		WriteError(w, ErrorParams{
			Code:    statusForFlowKind(fe.Kind),
			ErrCode: string(fe.Kind),
			Err:     errors.New(fe.Message),
		})
		return
	}

	h.logger().ErrorContext(r.Context(), "callback failed", "error", err)
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: "callback_failed",
		Err:     errors.New("sign-in could not be completed"),
	})
}

// statusForFlowKind maps flow failure kinds to HTTP statuses.
func statusForFlowKind(kind domainauth.FlowKind) int {
	switch kind {
	case domainauth.KindInvalidCallback, domainauth.KindMissingVerifier:
		return http.StatusBadRequest
	case domainauth.KindCsrfMismatch:
		return http.StatusForbidden
	case domainauth.KindProviderError, domainauth.KindTokenExchangeFailed:
		return http.StatusBadGateway
	case domainauth.KindRefreshFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// sidFromRequest reads the browser-scope id, or "" when absent.
func (h *AuthHandlers) sidFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ensureSid returns the request's sid, minting and setting one when absent.
func (h *AuthHandlers) ensureSid(w http.ResponseWriter, r *http.Request) string {
	if sid := h.sidFromRequest(r); sid != "" {
		return sid
	}

	sid := uuid.NewString()
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthAttemptMaxAge.Seconds()),
	})
	return sid
}

// clearCookie expires a cookie, mirroring the attributes used when setting it
// so browsers reliably delete it.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// safeRedirectPath ensures the candidate is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	if strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
