package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/metrics"
	"github.com/mhnuk2007/oerms-sub002/internal/observability/statsd"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

// PolicyServiceOptions groups dependencies for PolicyService.
type PolicyServiceOptions struct {
	Tokens  ports.TokenStore
	Client  ports.PolicyClient
	Metrics statsd.Sink
	Logger  *slog.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// PolicyService answers authorization questions against the backend policy
// endpoint. It fails closed: every error path yields a deny decision.
// Decisions are never cached; each query is recomputed.
type PolicyService struct {
	tokens ports.TokenStore
	client ports.PolicyClient
	sink   statsd.Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewPolicyService constructs a new PolicyService.
func NewPolicyService(opts PolicyServiceOptions) *PolicyService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PolicyService{
		tokens: opts.Tokens,
		client: opts.Client,
		sink:   opts.Metrics,
		logger: logger,
		now:    now,
	}
}

// Evaluate asks whether the session behind sid may perform the query's
// action on its resource. An unauthenticated scope, including one whose
// access token has expired, is denied immediately without a backend call. Any evaluation failure yields a deny decision
// together with a PolicyEvaluationFailed error for observability; callers
// must never interpret an error as permission.
func (s *PolicyService) Evaluate(ctx context.Context, sid string, q domainauth.PolicyQuery) (domainauth.Decision, error) {
	if q.Action == "" || q.Resource == "" {
		return domainauth.Decision{}, errors.New("action and resource are required")
	}

	deny := domainauth.Decision{Allowed: false}

	if sid == "" {
		metrics.EmitPolicyDecision(s.sink, false, false)
		return deny, nil
	}

	rec, err := s.tokens.Load(ctx, sid)
	if err != nil {
		metrics.EmitPolicyDecision(s.sink, false, true)
		return deny, domainauth.NewPolicyEvaluationFailed(err)
	}
	if rec == nil {
		// Signed out: deny without consulting the backend.
		metrics.EmitPolicyDecision(s.sink, false, false)
		return deny, nil
	}
	if rec.Expired(s.now()) {
		// Stores keep expired records for the refresh grace window; an expired
		// scope is still unauthenticated here, and the stale bearer must not
		// reach the backend.
		metrics.EmitPolicyDecision(s.sink, false, false)
		return deny, nil
	}

	allowed, err := s.client.Evaluate(ctx, rec.AccessToken, q)
	if err != nil {
		metrics.EmitPolicyDecision(s.sink, false, true)
		s.logger.WarnContext(ctx, "policy evaluation failed, denying",
			"action", q.Action, "resource", q.Resource, "error", err)
		return deny, domainauth.NewPolicyEvaluationFailed(err)
	}

	metrics.EmitPolicyDecision(s.sink, allowed, false)
	return domainauth.Decision{Allowed: allowed}, nil
}
