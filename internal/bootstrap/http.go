package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mhnuk2007/oerms-sub002/config"
	httpx "github.com/mhnuk2007/oerms-sub002/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   config.HTTPConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPServer assembles the router and server. The router carries its own
// middleware chain, so nothing is wrapped here.
func BuildHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	if cfg.Config.Addr == "" {
		return nil, errors.New("http server requires a listen address")
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Login:        cfg.Services.Login,
		Sessions:     cfg.Services.Sessions,
		Policy:       cfg.Services.Policy,
		CookieDomain: cfg.Config.CookieDomain,
		Logger:       cfg.Logger,
	})

	return &http.Server{
		Addr:              cfg.Config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// StartHTTPServer runs the server until it stops. A clean shutdown returns
// nil.
func StartHTTPServer(server *http.Server, logger *slog.Logger) error {
	if logger != nil {
		logger.Info("http server listening", "addr", server.Addr)
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// ShutdownHTTPServer drains in-flight requests with a bounded deadline.
func ShutdownHTTPServer(server *http.Server, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if logger != nil {
		logger.Info("http server shutting down")
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
