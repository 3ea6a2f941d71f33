package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/mocks"
	mockauth "github.com/mhnuk2007/oerms-sub002/internal/mocks/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/service"
)

// httpFixture wires real services over in-memory stores behind the router,
// so handler tests exercise the same paths the server does.
type httpFixture struct {
	router http.Handler

	urls      *mockauth.StubURLBuilder
	exchanger *mockauth.StubExchanger
	decoder   *mockauth.StubDecoder
	client    *mockauth.StubPolicyClient
	tokens    *mockauth.MemoryTokenStore
	states    *mockauth.MemoryStateStore
}

func newHTTPFixture() *httpFixture {
	f := &httpFixture{
		urls:      &mockauth.StubURLBuilder{},
		exchanger: &mockauth.StubExchanger{},
		decoder:   &mockauth.StubDecoder{},
		client:    &mockauth.StubPolicyClient{},
		tokens:    mockauth.NewMemoryTokenStore(),
		states:    mockauth.NewMemoryStateStore(),
	}
	f.decoder.User = domainauth.UserRecord{
		ID:       "u-1",
		Username: "jdoe",
		Email:    "jdoe@school.example",
		Roles:    []string{"ROLE_TEACHER"},
	}

	login := service.NewLoginService(service.LoginServiceOptions{
		URLBuilder: f.urls,
		Exchanger:  f.exchanger,
		Decoder:    f.decoder,
		Tokens:     f.tokens,
		States:     f.states,
	})
	sessions := service.NewSessionService(service.SessionServiceOptions{
		Tokens:    f.tokens,
		States:    f.states,
		Exchanger: f.exchanger,
		Decoder:   f.decoder,
	})
	policy := service.NewPolicyService(service.PolicyServiceOptions{
		Tokens: f.tokens,
		Client: f.client,
	})

	f.router = NewRouter(RouterServices{
		Login:    login,
		Sessions: sessions,
		Policy:   policy,
	})
	return f
}

// startLogin drives GET /auth/login and returns the minted sid cookie.
func (f *httpFixture) startLogin(t *testing.T, redirectURI string) *http.Cookie {
	t.Helper()

	target := "/auth/login"
	if redirectURI != "" {
		target += "?redirect_uri=" + url.QueryEscape(redirectURI)
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no sid cookie set by /auth/login")
	return nil
}

func TestLogin_RedirectsToProviderAndMintsSid(t *testing.T) {
	f := newHTTPFixture()

	req := httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri=/exams", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	location := rr.Header().Get("Location")
	assert.Contains(t, location, "idp.example.com")
	assert.Contains(t, location, f.urls.LastState)

	var sid *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName {
			sid = c
		}
	}
	require.NotNil(t, sid)
	assert.NotEmpty(t, sid.Value)
	assert.True(t, sid.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, sid.SameSite)

	// The attempt is bound to the minted sid.
	st, err := f.states.Load(context.Background(), sid.Value)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "/exams", st.RedirectURI)
}

func TestLogin_ReusesExistingSid(t *testing.T) {
	f := newHTTPFixture()

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-existing"})
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	for _, c := range rr.Result().Cookies() {
		assert.NotEqual(t, SessionCookieName, c.Name, "existing sid must not be replaced")
	}
	assert.True(t, f.states.Has("sid-existing"))
}

func TestLogin_RejectsUnsafeRedirects(t *testing.T) {
	tests := []struct {
		name        string
		redirectURI string
	}{
		{name: "absolute URL", redirectURI: "https://evil.example.com/phish"},
		{name: "scheme-relative", redirectURI: "//evil.example.com/phish"},
		{name: "no leading slash", redirectURI: "exams"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHTTPFixture()
			sid := f.startLogin(t, tt.redirectURI)

			st, err := f.states.Load(context.Background(), sid.Value)
			require.NoError(t, err)
			require.NotNil(t, st)
			assert.Equal(t, "/", st.RedirectURI, "unsafe redirect must collapse to root")
		})
	}
}

func TestLogin_BeginFailureIsMasked(t *testing.T) {
	f := newHTTPFixture()
	f.states.SaveErr = errors.New("redis: connection refused")

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "login_failed")
	assert.NotContains(t, rr.Body.String(), "redis", "backend detail must not leak")
}

func TestCallback_SuccessRedirectsAndAuthenticates(t *testing.T) {
	f := newHTTPFixture()
	sid := f.startLogin(t, "/results/42")

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=code-1&state="+url.QueryEscape(f.urls.LastState), nil)
	req.AddCookie(sid)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/results/42", rr.Header().Get("Location"))

	// The session is now live for the same scope.
	statusReq := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	statusReq.AddCookie(sid)
	statusRR := httptest.NewRecorder()
	f.router.ServeHTTP(statusRR, statusReq)

	require.Equal(t, http.StatusOK, statusRR.Code)
	assert.Contains(t, statusRR.Body.String(), `"authenticated":true`)
	assert.Contains(t, statusRR.Body.String(), `"jdoe"`)
	assert.Contains(t, statusRR.Body.String(), "ROLE_TEACHER")
	assert.Contains(t, statusRR.Body.String(), "expires_at")
}

func TestCallback_WithoutSidCookie(t *testing.T) {
	f := newHTTPFixture()

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=s", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing_session_scope")
	assert.Equal(t, 0, f.exchanger.ExchangeCallCount())
}

func TestCallback_FlowErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "provider error",
			query:      "error=access_denied&error_description=user+canceled",
			wantStatus: http.StatusBadGateway,
			wantCode:   "provider_error",
		},
		{
			name:       "missing code",
			query:      "state=s",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_callback",
		},
		{
			name:       "forged state",
			query:      "code=c&state=forged",
			wantStatus: http.StatusForbidden,
			wantCode:   "csrf_mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHTTPFixture()
			sid := f.startLogin(t, "/")

			req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query, nil)
			req.AddCookie(sid)
			rr := httptest.NewRecorder()
			f.router.ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantCode)
		})
	}
}

func TestCallback_ExchangeFailureIsBadGateway(t *testing.T) {
	f := newHTTPFixture()
	f.exchanger.ExchangeFunc = func(context.Context, string, string) (domainauth.TokenRecord, error) {
		return domainauth.TokenRecord{}, errors.New("invalid_grant: code expired")
	}
	sid := f.startLogin(t, "/")

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=c&state="+url.QueryEscape(f.urls.LastState), nil)
	req.AddCookie(sid)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "token_exchange_failed")
	assert.NotContains(t, rr.Body.String(), "invalid_grant", "backend detail must not leak")
}

// TestCallback_ExchangeReceivesStoredVerifier drives the handler against a
// generated mock of the token exchanger to pin the exact call contract.
func TestCallback_ExchangeReceivesStoredVerifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	exchanger := mocks.NewMockTokenExchanger(ctrl)

	urls := &mockauth.StubURLBuilder{}
	decoder := &mockauth.StubDecoder{}
	tokens := mockauth.NewMemoryTokenStore()
	states := mockauth.NewMemoryStateStore()

	login := service.NewLoginService(service.LoginServiceOptions{
		URLBuilder: urls,
		Exchanger:  exchanger,
		Decoder:    decoder,
		Tokens:     tokens,
		States:     states,
	})
	sessions := service.NewSessionService(service.SessionServiceOptions{
		Tokens:    tokens,
		States:    states,
		Exchanger: exchanger,
		Decoder:   decoder,
	})
	router := NewRouter(RouterServices{Login: login, Sessions: sessions})

	loginReq := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	loginRR := httptest.NewRecorder()
	router.ServeHTTP(loginRR, loginReq)
	require.Equal(t, http.StatusFound, loginRR.Code)

	var sid *http.Cookie
	for _, c := range loginRR.Result().Cookies() {
		if c.Name == SessionCookieName {
			sid = c
		}
	}
	require.NotNil(t, sid)

	st, err := states.Load(context.Background(), sid.Value)
	require.NoError(t, err)
	require.NotNil(t, st)

	exchanger.EXPECT().
		Exchange(gomock.Any(), "code-1", st.Verifier).
		Return(domainauth.TokenRecord{
			AccessToken: "at-1",
			ExpiresAt:   time.Now().Add(time.Hour),
		}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=code-1&state="+url.QueryEscape(st.State), nil)
	req.AddCookie(sid)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, tokens.Has(sid.Value))
}

func TestLogout_Idempotent(t *testing.T) {
	f := newHTTPFixture()
	sid := f.startLogin(t, "/")
	completeLogin(t, f, sid)
	require.True(t, f.tokens.Has(sid.Value))

	// First logout clears everything.
	rr := doLogout(f, sid)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "signed_out")
	assert.False(t, f.tokens.Has(sid.Value))
	assertClearedCookie(t, rr)

	// A second logout, and one with no cookie at all, still succeed.
	rr = doLogout(f, sid)
	require.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rr2 := httptest.NewRecorder()
	f.router.ServeHTTP(rr2, req)
	require.Equal(t, http.StatusOK, rr2.Code)
}

func TestStatus_Unauthenticated(t *testing.T) {
	f := newHTTPFixture()

	// No cookie at all.
	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())

	// Cookie with no record behind it.
	req = httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-unknown"})
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())
}

func TestStatus_DegradedSessionReadsSignedOut(t *testing.T) {
	f := newHTTPFixture()
	require.NoError(t, f.tokens.Save(context.Background(), "sid-1", domainauth.TokenRecord{
		AccessToken:  "at-dead",
		RefreshToken: "rt-revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	f.exchanger.RefreshFunc = func(context.Context, string) (domainauth.TokenRecord, error) {
		return domainauth.TokenRecord{}, errors.New("invalid_grant")
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sid-1"})
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())
	assert.False(t, f.tokens.Has("sid-1"), "failed refresh clears the record")
}

// completeLogin finishes the pending attempt for sid with the bound state.
func completeLogin(t *testing.T, f *httpFixture, sid *http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=code-1&state="+url.QueryEscape(f.urls.LastState), nil)
	req.AddCookie(sid)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusFound, rr.Code)
}

func doLogout(f *httpFixture, sid *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(sid)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func assertClearedCookie(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName {
			assert.Empty(t, c.Value)
			assert.Negative(t, c.MaxAge)
			return
		}
	}
	t.Fatal("sid cookie was not cleared")
}
