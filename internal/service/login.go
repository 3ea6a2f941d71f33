package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/metrics"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/statsd"
	"github.com/mhnuk2007/oerms-sub002/internal/pkce"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

// LoginServiceOptions groups dependencies for LoginService.
type LoginServiceOptions struct {
	URLBuilder ports.AuthorizeURLBuilder
	Exchanger  ports.TokenExchanger
	Decoder    ports.IdentityDecoder
	Tokens     ports.TokenStore
	States     ports.StateStore
	Metrics    statsd.Sink
	Logger     *slog.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// LoginService runs the authorization-code-with-PKCE flow on behalf of the
// browser: it mints the protocol state before the redirect and completes the
// flow on the callback.
type LoginService struct {
	urls      ports.AuthorizeURLBuilder
	exchanger ports.TokenExchanger
	decoder   ports.IdentityDecoder
	tokens    ports.TokenStore
	states    ports.StateStore
	sink      statsd.Sink
	logger    *slog.Logger
	now       func() time.Time
}

// NewLoginService constructs a new LoginService.
func NewLoginService(opts LoginServiceOptions) *LoginService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LoginService{
		urls:      opts.URLBuilder,
		exchanger: opts.Exchanger,
		decoder:   opts.Decoder,
		tokens:    opts.Tokens,
		states:    opts.States,
		sink:      opts.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Begin starts a login attempt for the given browser scope: it generates the
// PKCE pair and anti-CSRF state, persists them, and returns the authorize URL
// to redirect the browser to. A repeated Begin replaces any pending attempt.
func (s *LoginService) Begin(ctx context.Context, sid, redirectURI string) (string, error) {
	if sid == "" {
		return "", errors.New("sid is required")
	}

	pair, err := pkce.Generate()
	if err != nil {
		return "", fmt.Errorf("generate pkce pair: %w", err)
	}
	state, err := pkce.GenerateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	authorizeURL, err := s.urls.BuildAuthorizeURL(pair.Challenge, state)
	if err != nil {
		return "", fmt.Errorf("build authorize URL: %w", err)
	}

	// Persist before returning the URL: the callback is useless without the
	// stored verifier.
	st := domainauth.ProtocolState{
		State:       state,
		Verifier:    pair.Verifier,
		RedirectURI: redirectURI,
		CreatedAt:   s.now(),
	}
	if saveErr := s.states.Save(ctx, sid, st); saveErr != nil {
		return "", fmt.Errorf("save protocol state: %w", saveErr)
	}

	metrics.EmitLoginBegin(s.sink)
	s.logger.InfoContext(ctx, "login attempt started", "sid", sid)

	return authorizeURL, nil
}

// CallbackParams carries the query parameters of the provider redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is the outcome of a completed login attempt.
type CallbackResult struct {
	Session domainauth.Session
	// RedirectURI is the post-login destination captured at Begin time.
	RedirectURI string
}

// HandleCallback validates and completes the provider redirect. Gates run in
// a fixed order; once the stored protocol state has been loaded it is cleared
// exactly once, whatever the outcome. The token endpoint is called at most
// once, and never before the state check has passed.
func (s *LoginService) HandleCallback(ctx context.Context, sid string, params CallbackParams) (CallbackResult, error) {
	if sid == "" {
		return CallbackResult{}, errors.New("sid is required")
	}

	// Provider-reported failure: the attempt never produced a code. The
	// attempt is abandoned, so its pending state goes too.
	if params.Error != "" {
		s.discardState(ctx, sid)
		return s.fail(ctx, domainauth.NewProviderError(params.Error, params.ErrorDescription))
	}
	if params.Code == "" {
		s.discardState(ctx, sid)
		return s.fail(ctx, domainauth.NewInvalidCallback("code"))
	}
	if params.State == "" {
		s.discardState(ctx, sid)
		return s.fail(ctx, domainauth.NewInvalidCallback("state"))
	}

	st, err := s.states.Load(ctx, sid)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("load protocol state: %w", err)
	}

	// From here the state is consumed: clear it exactly once on every path.
	defer func() {
		if clearErr := s.states.Clear(ctx, sid); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to clear protocol state", "sid", sid, "error", clearErr)
		}
	}()

	if st == nil || st.State != params.State {
		return s.fail(ctx, domainauth.NewCsrfMismatch())
	}
	if st.Verifier == "" {
		return s.fail(ctx, domainauth.NewMissingVerifier())
	}

	start := s.now()
	rec, err := s.exchanger.Exchange(ctx, params.Code, st.Verifier)
	elapsed := s.now().Sub(start)
	if err != nil {
		flowErr := domainauth.NewTokenExchangeFailed(err)
		metrics.EmitLoginOutcome(s.sink, metrics.LoginOutcome{
			Result:           metrics.ResultFailure,
			Kind:             string(flowErr.Kind),
			ExchangeDuration: elapsed,
		})
		s.logger.ErrorContext(ctx, "token exchange failed", "sid", sid, "error", err)
		return CallbackResult{RedirectURI: st.RedirectURI}, flowErr
	}

	if saveErr := s.tokens.Save(ctx, sid, rec); saveErr != nil {
		return CallbackResult{RedirectURI: st.RedirectURI}, fmt.Errorf("save token record: %w", saveErr)
	}

	user, err := s.decoder.Decode(ctx, rec.AccessToken)
	if err != nil {
		// The record is unusable; do not leave it behind.
		if clearErr := s.tokens.Clear(ctx, sid); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to clear unusable token record", "sid", sid, "error", clearErr)
		}
		flowErr := domainauth.NewTokenExchangeFailed(fmt.Errorf("decode access token: %w", err))
		metrics.EmitLoginOutcome(s.sink, metrics.LoginOutcome{
			Result:           metrics.ResultFailure,
			Kind:             string(flowErr.Kind),
			ExchangeDuration: elapsed,
		})
		return CallbackResult{RedirectURI: st.RedirectURI}, flowErr
	}

	metrics.EmitLoginOutcome(s.sink, metrics.LoginOutcome{
		Result:           metrics.ResultSuccess,
		ExchangeDuration: elapsed,
	})
	s.logger.InfoContext(ctx, "login completed", "sid", sid, "user_id", user.ID)

	sess := domainauth.Authenticated(user)
	sess.ExpiresAt = rec.ExpiresAt
	return CallbackResult{
		Session:     sess,
		RedirectURI: st.RedirectURI,
	}, nil
}

// discardState drops any pending protocol state for an abandoned attempt.
// Best effort: the state would otherwise age out on its TTL.
func (s *LoginService) discardState(ctx context.Context, sid string) {
	if err := s.states.Clear(ctx, sid); err != nil {
		s.logger.WarnContext(ctx, "failed to discard protocol state", "sid", sid, "error", err)
	}
}

// fail emits the failure metric for a flow error and returns it.
func (s *LoginService) fail(ctx context.Context, flowErr *domainauth.FlowError) (CallbackResult, error) {
	metrics.EmitLoginOutcome(s.sink, metrics.LoginOutcome{
		Result: metrics.ResultFailure,
		Kind:   string(flowErr.Kind),
	})
	s.logger.WarnContext(ctx, "login attempt failed", "kind", flowErr.Kind, "detail", flowErr.Detail)
	return CallbackResult{}, flowErr
}
