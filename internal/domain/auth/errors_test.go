package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowError_Terminal(t *testing.T) {
	tests := []struct {
		kind FlowKind
		want bool
	}{
		{KindProviderError, true},
		{KindInvalidCallback, true},
		{KindCsrfMismatch, true},
		{KindMissingVerifier, true},
		{KindTokenExchangeFailed, true},
		{KindRefreshFailed, false},
		{KindPolicyEvaluationFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &FlowError{Kind: tt.kind, Message: "m"}
			assert.Equal(t, tt.want, e.Terminal())
		})
	}
}

func TestFlowError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewTokenExchangeFailed(cause)

	assert.ErrorIs(t, e, cause)
	assert.Equal(t, KindTokenExchangeFailed, e.Kind)
	assert.Contains(t, e.Detail, "connection refused")
}

func TestNewProviderError_SurfacesProviderText(t *testing.T) {
	e := NewProviderError("access_denied", "user cancelled the request")

	assert.Equal(t, KindProviderError, e.Kind)
	assert.Contains(t, e.Detail, "access_denied")
	assert.Contains(t, e.Detail, "user cancelled the request")
	// The user-facing message never exposes raw provider internals.
	assert.NotContains(t, e.Message, "access_denied")
}

func TestAsFlowError(t *testing.T) {
	wrapped := fmt.Errorf("handle callback: %w", NewCsrfMismatch())

	fe, ok := AsFlowError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindCsrfMismatch, fe.Kind)

	_, ok = AsFlowError(errors.New("plain"))
	assert.False(t, ok)

	assert.Equal(t, KindCsrfMismatch, KindOf(wrapped))
	assert.Equal(t, FlowKind(""), KindOf(errors.New("plain")))
}

func TestFlowError_MessagesAreHumanReadable(t *testing.T) {
	errs := []*FlowError{
		NewProviderError("server_error", ""),
		NewInvalidCallback("code"),
		NewCsrfMismatch(),
		NewMissingVerifier(),
		NewTokenExchangeFailed(errors.New("boom")),
		NewRefreshFailed(errors.New("boom")),
		NewPolicyEvaluationFailed(errors.New("boom")),
	}

	for _, e := range errs {
		assert.NotEmpty(t, e.Message, "kind %s", e.Kind)
	}
}
