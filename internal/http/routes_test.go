package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	f := newHTTPFixture()

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","service":"oerms-auth"}`, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	// HEAD gets the status without a body.
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestRouter_MethodsAreEnforced(t *testing.T) {
	f := newHTTPFixture()

	tests := []struct {
		method string
		path   string
	}{
		{method: http.MethodPost, path: "/auth/login"},
		{method: http.MethodGet, path: "/auth/logout"},
		{method: http.MethodGet, path: "/auth/policy/evaluate"},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRouter_UnknownPathIs404(t *testing.T) {
	f := newHTTPFixture()

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
