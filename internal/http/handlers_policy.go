package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
)

// PolicyEvaluator answers authorization queries for a browser scope.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, sid string, q domainauth.PolicyQuery) (domainauth.Decision, error)
}

// PolicyHandlers exposes the policy evaluation endpoint to the UI.
type PolicyHandlers struct {
	Svc    PolicyEvaluator
	Logger *slog.Logger
}

func (h *PolicyHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// policyEvaluateRequest is the JSON body of an evaluation query.
type policyEvaluateRequest struct {
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	Context  map[string]any `json:"context,omitempty"`
}

// Evaluate answers one authorization query for the calling browser scope.
// POST /auth/policy/evaluate {action, resource, context} → {allowed}.
//
// Evaluation failures still return 200 with allowed:false plus an error code:
// the UI treats any non-allow as a deny, and a transport error must never
// read as permission.
func (h *PolicyHandlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req policyEvaluateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Action == "" || req.Resource == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_query",
			Err:     errors.New("action and resource are required"),
		})
		return
	}

	var sid string
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		sid = cookie.Value
	}

	decision, err := h.Svc.Evaluate(r.Context(), sid, domainauth.PolicyQuery{
		Action:   req.Action,
		Resource: req.Resource,
		Context:  req.Context,
	})
	if err != nil {
		if domainauth.KindOf(err) == domainauth.KindPolicyEvaluationFailed {
			h.logger().WarnContext(r.Context(), "policy evaluation failed",
				"action", req.Action, "resource", req.Resource, "error", err)
			WriteJSON(w, http.StatusOK, map[string]any{
				"allowed": false,
				"error":   string(domainauth.KindPolicyEvaluationFailed),
			})
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_query",
			Err:     err,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"allowed": decision.Allowed})
}
