package config

import (
	"strings"
	"time"
)

// PolicyConfig controls the backend policy evaluation client.
type PolicyConfig struct {
	// EndpointURL is the backend decision endpoint. Empty disables the
	// policy surface entirely; every query then denies.
	EndpointURL string `env:"POLICY_ENDPOINT_URL"`

	// DecisionPath is the JMESPath expression locating the boolean decision
	// in the endpoint's response body.
	DecisionPath string `env:"POLICY_DECISION_PATH" envDefault:"allowed"`

	// Timeout bounds each evaluation call.
	Timeout time.Duration `env:"POLICY_TIMEOUT" envDefault:"5s"`
}

// Sanitize normalises policy configuration values.
func (c *PolicyConfig) Sanitize() {
	c.EndpointURL = strings.TrimSpace(c.EndpointURL)
	if c.DecisionPath = strings.TrimSpace(c.DecisionPath); c.DecisionPath == "" {
		c.DecisionPath = "allowed"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// IsEnabled returns true when a policy endpoint is configured.
func (c *PolicyConfig) IsEnabled() bool {
	return c.EndpointURL != ""
}
