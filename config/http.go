package config

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain attribute for the sid cookie.
	// Leave empty to scope the cookie to the request host.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`
}

// Sanitize applies guardrails to HTTP configuration values. A cookie domain
// that is a public suffix (e.g. "com", "co.uk", "github.io") is dropped:
// browsers reject such cookies, and a typo here would silently break login
// for every user.
func (h *HTTPConfig) Sanitize() {
	h.CookieDomain = strings.TrimSpace(strings.TrimPrefix(h.CookieDomain, "."))
	if h.CookieDomain == "" {
		return
	}

	suffix, _ := publicsuffix.PublicSuffix(strings.ToLower(h.CookieDomain))
	if strings.EqualFold(suffix, h.CookieDomain) {
		h.CookieDomain = ""
	}
}
