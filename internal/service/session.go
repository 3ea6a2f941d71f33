package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/metrics"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/statsd"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Tokens    ports.TokenStore
	States    ports.StateStore
	Exchanger ports.TokenExchanger
	Decoder   ports.IdentityDecoder
	// RefreshLeeway triggers a proactive refresh when the access token
	// expires inside this window. Defaults to 30s.
	RefreshLeeway time.Duration
	Metrics       statsd.Sink
	Logger        *slog.Logger
	Now           func() time.Time
}

// SessionService derives the application Session from stored token records
// and keeps them fresh with silent, deduplicated refreshes.
type SessionService struct {
	tokens    ports.TokenStore
	states    ports.StateStore
	exchanger ports.TokenExchanger
	decoder   ports.IdentityDecoder
	leeway    time.Duration
	sink      statsd.Sink
	logger    *slog.Logger
	now       func() time.Time

	refreshGroup singleflight.Group
}

// NewSessionService constructs a new SessionService.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	leeway := opts.RefreshLeeway
	if leeway == 0 {
		leeway = 30 * time.Second
	}
	return &SessionService{
		tokens:    opts.Tokens,
		states:    opts.States,
		exchanger: opts.Exchanger,
		decoder:   opts.Decoder,
		leeway:    leeway,
		sink:      opts.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Resolve derives the current Session for a browser scope. An absent record
// resolves to unauthenticated without any network call. A record expiring
// inside the refresh leeway is refreshed silently before use; concurrent
// resolvers of the same sid share one refresh outcome. A failed refresh
// degrades the session to unauthenticated and clears the stored tokens.
// Every resolution path returns IsLoading=false.
func (s *SessionService) Resolve(ctx context.Context, sid string) (domainauth.Session, error) {
	if sid == "" {
		return domainauth.Unauthenticated(), nil
	}

	rec, err := s.tokens.Load(ctx, sid)
	if err != nil {
		return domainauth.Unauthenticated(), fmt.Errorf("load token record: %w", err)
	}
	if rec == nil {
		return domainauth.Unauthenticated(), nil
	}

	if rec.ExpiresWithin(s.now(), s.leeway) {
		rec, err = s.refresh(ctx, sid, *rec)
		if err != nil {
			return domainauth.Unauthenticated(), err
		}
	}

	user, err := s.decoder.Decode(ctx, rec.AccessToken)
	if err != nil {
		// An unexpired token that fails verification is unusable; drop it.
		if clearErr := s.tokens.Clear(ctx, sid); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to clear undecodable token record", "sid", sid, "error", clearErr)
		}
		return domainauth.Unauthenticated(), fmt.Errorf("decode access token: %w", err)
	}

	sess := domainauth.Authenticated(user)
	sess.ExpiresAt = rec.ExpiresAt
	return sess, nil
}

// refresh renews the token record through a singleflight group keyed by sid,
// so concurrent resolvers trigger exactly one token-endpoint call.
func (s *SessionService) refresh(ctx context.Context, sid string, stale domainauth.TokenRecord) (*domainauth.TokenRecord, error) {
	result, err, _ := s.refreshGroup.Do(sid, func() (any, error) {
		if stale.RefreshToken == "" {
			return nil, errors.New("no refresh token in record")
		}
		renewed, refreshErr := s.exchanger.Refresh(ctx, stale.RefreshToken)
		if refreshErr != nil {
			return nil, refreshErr
		}
		if saveErr := s.tokens.Save(ctx, sid, renewed); saveErr != nil {
			return nil, fmt.Errorf("save refreshed token record: %w", saveErr)
		}
		return &renewed, nil
	})
	if err != nil {
		// Cancellation aborts without touching stores.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		metrics.EmitRefreshOutcome(s.sink, metrics.ResultFailure)
		s.logger.WarnContext(ctx, "silent refresh failed", "sid", sid, "error", err)
		if clearErr := s.tokens.Clear(ctx, sid); clearErr != nil {
			s.logger.ErrorContext(ctx, "failed to clear token record after refresh failure", "sid", sid, "error", clearErr)
		}
		return nil, domainauth.NewRefreshFailed(err)
	}

	metrics.EmitRefreshOutcome(s.sink, metrics.ResultSuccess)
	return result.(*domainauth.TokenRecord), nil
}

// Logout ends the session for a browser scope: token record and any pending
// protocol state are cleared. It is idempotent and succeeds when there is
// nothing to clear.
func (s *SessionService) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}

	var errs []error
	if err := s.tokens.Clear(ctx, sid); err != nil {
		errs = append(errs, fmt.Errorf("clear token record: %w", err))
	}
	if err := s.states.Clear(ctx, sid); err != nil {
		errs = append(errs, fmt.Errorf("clear protocol state: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.InfoContext(ctx, "logged out", "sid", sid)
	return nil
}
