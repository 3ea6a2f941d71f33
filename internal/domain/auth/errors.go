package auth

import (
	"errors"
	"fmt"
)

// FlowKind categorizes a failure of the authentication or authorization flow.
type FlowKind string

const (
	// KindProviderError means the identity provider reported a failure on the
	// callback (the redirect carried an error parameter).
	KindProviderError FlowKind = "provider_error"
	// KindInvalidCallback means the redirect was malformed (missing code or
	// state).
	KindInvalidCallback FlowKind = "invalid_callback"
	// KindCsrfMismatch means the returned state did not match the stored
	// state. Treated as a security incident; always fatal to the attempt.
	KindCsrfMismatch FlowKind = "csrf_mismatch"
	// KindMissingVerifier means the PKCE verifier was lost mid-flow (e.g.
	// storage cleared between redirect and callback).
	KindMissingVerifier FlowKind = "missing_verifier"
	// KindTokenExchangeFailed means the backend rejected the code exchange or
	// the call failed at the transport level.
	KindTokenExchangeFailed FlowKind = "token_exchange_failed"
	// KindRefreshFailed means a silent refresh could not renew the session.
	KindRefreshFailed FlowKind = "refresh_failed"
	// KindPolicyEvaluationFailed means an authorization query failed; the
	// decision fails closed.
	KindPolicyEvaluationFailed FlowKind = "policy_evaluation_failed"
)

// FlowError is a terminal, user-presentable failure of a login, refresh, or
// policy operation. Message is always safe to show; Detail carries
// provider/backend text when available.
type FlowError struct {
	Kind    FlowKind
	Message string
	Detail  string
	Cause   error
}

func (e *FlowError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error { return e.Cause }

// Terminal reports whether the error ends the login attempt (as opposed to a
// recoverable degradation like a failed refresh or policy query).
func (e *FlowError) Terminal() bool {
	switch e.Kind {
	case KindProviderError, KindInvalidCallback, KindCsrfMismatch,
		KindMissingVerifier, KindTokenExchangeFailed:
		return true
	default:
		return false
	}
}

// NewProviderError surfaces the provider's own error text from the callback.
func NewProviderError(providerCode, providerDescription string) *FlowError {
	detail := providerCode
	if providerDescription != "" {
		detail = providerCode + ": " + providerDescription
	}
	return &FlowError{
		Kind:    KindProviderError,
		Message: "The identity provider rejected the sign-in attempt. Please try signing in again.",
		Detail:  detail,
	}
}

// NewInvalidCallback flags a malformed redirect from the identity provider.
func NewInvalidCallback(missing string) *FlowError {
	return &FlowError{
		Kind:    KindInvalidCallback,
		Message: "The sign-in response was incomplete. Please try signing in again.",
		Detail:  "missing " + missing + " parameter",
	}
}

// NewCsrfMismatch flags a state mismatch on the callback.
func NewCsrfMismatch() *FlowError {
	return &FlowError{
		Kind:    KindCsrfMismatch,
		Message: "The sign-in response could not be verified. Please try signing in again.",
	}
}

// NewMissingVerifier flags a lost PKCE verifier.
func NewMissingVerifier() *FlowError {
	return &FlowError{
		Kind:    KindMissingVerifier,
		Message: "Your sign-in attempt expired. Please try signing in again.",
	}
}

// NewTokenExchangeFailed wraps a failed code exchange, keeping any
// backend-provided detail.
func NewTokenExchangeFailed(cause error) *FlowError {
	e := &FlowError{
		Kind:    KindTokenExchangeFailed,
		Message: "Sign-in could not be completed. Please try again.",
		Cause:   cause,
	}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// NewRefreshFailed wraps a failed silent refresh.
func NewRefreshFailed(cause error) *FlowError {
	return &FlowError{
		Kind:    KindRefreshFailed,
		Message: "Your session has expired. Please sign in again.",
		Cause:   cause,
	}
}

// NewPolicyEvaluationFailed wraps a failed authorization query.
func NewPolicyEvaluationFailed(cause error) *FlowError {
	return &FlowError{
		Kind:    KindPolicyEvaluationFailed,
		Message: "The action could not be authorized right now.",
		Cause:   cause,
	}
}

// AsFlowError unwraps err into a *FlowError when possible.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the flow kind of err, or empty string for non-flow errors.
func KindOf(err error) FlowKind {
	if fe, ok := AsFlowError(err); ok {
		return fe.Kind
	}
	return ""
}
