package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Login        LoginFlow
	Sessions     SessionResolver
	Policy       PolicyEvaluator
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter wires the BFF endpoints and the standard middleware chain
// (panic recovery outermost, then request logging).
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Flow:         services.Login,
		Sessions:     services.Sessions,
		CookieDomain: services.CookieDomain,
		Logger:       logger,
	}
	policyHandlers := &PolicyHandlers{Svc: services.Policy, Logger: logger}

	registerAuthRoutes(mux, authHandlers)
	mux.HandleFunc("POST /auth/policy/evaluate", policyHandlers.Evaluate)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return Recover(logger)(Logging(logger)(mux))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}
