package policy

// Package policy provides the HTTP client for the backend policy decision
// endpoint. The client only transports the question and extracts the
// decision; fail-closed handling belongs to the caller.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

var _ ports.PolicyClient = (*Client)(nil)

const defaultDecisionPath = "allowed"

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// Config controls the policy client.
type Config struct {
	// EndpointURL is the decision endpoint, e.g. https://api.oerms.internal/policy/evaluate.
	EndpointURL string
	// DecisionPath is the JMESPath into the response that yields the boolean
	// decision. Defaults to "allowed".
	DecisionPath string
	// Timeout bounds each evaluation round trip. Defaults to 5s.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// Evaluator overrides JMESPath evaluation, mainly for tests.
	Evaluator JMESPathEvaluator
}

// Client asks the backend whether an action on a resource is allowed for the
// bearer of an access token.
type Client struct {
	endpoint     string
	decisionPath string
	timeout      time.Duration
	httpClient   *http.Client
	jems         JMESPathEvaluator
}

// NewClient validates cfg and constructs a policy client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.EndpointURL == "" {
		return nil, errors.New("policy: endpoint URL is required")
	}
	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("policy: invalid endpoint URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("policy: invalid endpoint scheme: %s", u.Scheme)
	}

	decisionPath := cfg.DecisionPath
	if decisionPath == "" {
		decisionPath = defaultDecisionPath
	}

	jems := cfg.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	if validateErr := jems.Validate(decisionPath); validateErr != nil {
		return nil, fmt.Errorf("policy: invalid decision path: %w", validateErr)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:     cfg.EndpointURL,
		decisionPath: decisionPath,
		timeout:      timeout,
		httpClient:   httpClient,
		jems:         jems,
	}, nil
}

// Evaluate posts the query and extracts the boolean decision from the
// response. Any transport, status, or shape problem is an error; callers
// must treat errors as deny.
func (c *Client) Evaluate(ctx context.Context, accessToken string, q domainauth.PolicyQuery) (bool, error) {
	if accessToken == "" {
		return false, errors.New("access token is required")
	}
	if q.Action == "" || q.Resource == "" {
		return false, errors.New("action and resource are required")
	}

	body, err := json.Marshal(q)
	if err != nil {
		return false, fmt.Errorf("marshal policy query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build policy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("policy request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("policy endpoint returned status %d", resp.StatusCode)
	}

	var payload any
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return false, fmt.Errorf("decode policy response: %w", decodeErr)
	}

	raw, err := c.jems.Evaluate(c.decisionPath, payload)
	if err != nil {
		return false, fmt.Errorf("extract decision %q: %w", c.decisionPath, err)
	}

	allowed, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("decision at %q is not a boolean (got %T)", c.decisionPath, raw)
	}
	return allowed, nil
}
