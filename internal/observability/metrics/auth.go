package metrics

// Package metrics emits standardized auth-flow metrics through a statsd.Sink.
// All emitters tolerate a nil sink so callers never need to guard.

import (
	"time"

	"github.com/mhnuk2007/oerms-sub002/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// EmitLoginBegin counts a started login attempt.
func EmitLoginBegin(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("auth.login.begin", 1, nil)
}

// LoginOutcome captures the end of one login attempt for metric emission.
type LoginOutcome struct {
	Result string
	// Kind is the flow error kind on failure, empty on success.
	Kind string
	// ExchangeDuration is the token endpoint round trip, zero when the
	// exchange never ran.
	ExchangeDuration time.Duration
}

// EmitLoginOutcome counts a finished login attempt and times the exchange.
func EmitLoginOutcome(sink statsd.Sink, out LoginOutcome) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": out.Result}
	if out.Kind != "" {
		tags["kind"] = out.Kind
	}
	sink.Count("auth.login.complete", 1, tags)

	if out.ExchangeDuration > 0 {
		sink.Timing("auth.exchange.duration", out.ExchangeDuration, cloneTags(tags))
	}
}

// EmitRefreshOutcome counts one silent token refresh attempt.
func EmitRefreshOutcome(sink statsd.Sink, result string) {
	if sink == nil {
		return
	}
	sink.Count("auth.refresh.complete", 1, map[string]string{"result": result})
}

// EmitPolicyDecision counts a policy evaluation. Denied covers both explicit
// backend denials and fail-closed denials; failed marks the latter.
func EmitPolicyDecision(sink statsd.Sink, allowed, failed bool) {
	if sink == nil {
		return
	}
	if failed {
		sink.Count("auth.policy.error", 1, nil)
	}
	if allowed {
		sink.Count("auth.policy.allowed", 1, nil)
		return
	}
	sink.Count("auth.policy.denied", 1, nil)
}

// cloneTags creates a shallow copy of a tag map.
func cloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
