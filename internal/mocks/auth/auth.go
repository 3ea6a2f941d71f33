package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TokenStore          = (*MemoryTokenStore)(nil)
	_ ports.StateStore          = (*MemoryStateStore)(nil)
	_ ports.AuthorizeURLBuilder = (*StubURLBuilder)(nil)
	_ ports.TokenExchanger      = (*StubExchanger)(nil)
	_ ports.IdentityDecoder     = (*StubDecoder)(nil)
	_ ports.PolicyClient        = (*StubPolicyClient)(nil)
)

// MemoryTokenStore is an in-memory token store for unit tests.
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[string]domainauth.TokenRecord

	// SaveErr / LoadErr / ClearErr force failures when set.
	SaveErr  error
	LoadErr  error
	ClearErr error

	SaveCalls  int
	ClearCalls int
}

// NewMemoryTokenStore creates a new in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[string]domainauth.TokenRecord)}
}

func (m *MemoryTokenStore) Save(_ context.Context, sid string, rec domainauth.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if sid == "" {
		return errors.New("sid cannot be empty")
	}
	m.records[sid] = rec
	return nil
}

func (m *MemoryTokenStore) Load(_ context.Context, sid string) (*domainauth.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	rec, ok := m.records[sid]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (m *MemoryTokenStore) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	delete(m.records, sid)
	return nil
}

// Has reports whether a record exists for sid.
func (m *MemoryTokenStore) Has(sid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[sid]
	return ok
}

// MemoryStateStore is an in-memory login state store for unit tests.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]domainauth.ProtocolState

	SaveErr  error
	LoadErr  error
	ClearErr error

	SaveCalls  int
	ClearCalls int
}

// NewMemoryStateStore creates a new in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]domainauth.ProtocolState)}
}

func (m *MemoryStateStore) Save(_ context.Context, sid string, st domainauth.ProtocolState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if sid == "" {
		return errors.New("sid cannot be empty")
	}
	m.states[sid] = st
	return nil
}

func (m *MemoryStateStore) Load(_ context.Context, sid string) (*domainauth.ProtocolState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	st, ok := m.states[sid]
	if !ok {
		return nil, nil
	}
	out := st
	return &out, nil
}

func (m *MemoryStateStore) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	delete(m.states, sid)
	return nil
}

// Has reports whether a state exists for sid.
func (m *MemoryStateStore) Has(sid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[sid]
	return ok
}

// StubURLBuilder returns a canned authorize URL and records inputs.
type StubURLBuilder struct {
	URL string
	Err error

	LastChallenge string
	LastState     string
	Calls         int
}

func (s *StubURLBuilder) BuildAuthorizeURL(challenge, state string) (string, error) {
	s.Calls++
	s.LastChallenge = challenge
	s.LastState = state
	if s.Err != nil {
		return "", s.Err
	}
	if s.URL == "" {
		return "https://idp.example.com/oauth2/authorize?state=" + state, nil
	}
	return s.URL, nil
}

// StubExchanger simulates the token endpoint with configurable behavior and
// call counters for asserting exchange/refresh happened (or did not).
type StubExchanger struct {
	ExchangeFunc func(ctx context.Context, code, verifier string) (domainauth.TokenRecord, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (domainauth.TokenRecord, error)

	mu            sync.Mutex
	ExchangeCalls int
	RefreshCalls  int
	LastCode      string
	LastVerifier  string
	LastRefresh   string
}

func (s *StubExchanger) Exchange(ctx context.Context, code, verifier string) (domainauth.TokenRecord, error) {
	s.mu.Lock()
	s.ExchangeCalls++
	s.LastCode = code
	s.LastVerifier = verifier
	s.mu.Unlock()

	if s.ExchangeFunc != nil {
		return s.ExchangeFunc(ctx, code, verifier)
	}
	return domainauth.TokenRecord{
		AccessToken:  "stub-access-" + code,
		RefreshToken: "stub-refresh-" + code,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (s *StubExchanger) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenRecord, error) {
	s.mu.Lock()
	s.RefreshCalls++
	s.LastRefresh = refreshToken
	s.mu.Unlock()

	if s.RefreshFunc != nil {
		return s.RefreshFunc(ctx, refreshToken)
	}
	return domainauth.TokenRecord{
		AccessToken:  "stub-access-renewed",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

// ExchangeCallCount returns the number of Exchange calls, safe for
// concurrent assertion.
func (s *StubExchanger) ExchangeCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ExchangeCalls
}

// RefreshCallCount returns the number of Refresh calls.
func (s *StubExchanger) RefreshCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.RefreshCalls
}

// StubDecoder decodes any token into the configured user.
type StubDecoder struct {
	User domainauth.UserRecord
	Err  error

	DecodeCalls int
	LastToken   string
}

func (s *StubDecoder) Decode(_ context.Context, accessToken string) (domainauth.UserRecord, error) {
	s.DecodeCalls++
	s.LastToken = accessToken
	if s.Err != nil {
		return domainauth.UserRecord{}, s.Err
	}
	if s.User.ID == "" {
		return domainauth.UserRecord{
			ID:       "stub-user-1",
			Username: "stub.user",
			Email:    "stub.user@example.com",
			Roles:    []string{string(domainauth.RoleStudent)},
		}, nil
	}
	return s.User, nil
}

// StubPolicyClient returns canned policy decisions and records queries.
type StubPolicyClient struct {
	Allowed bool
	Err     error

	EvaluateCalls int
	LastToken     string
	LastQuery     domainauth.PolicyQuery
}

func (s *StubPolicyClient) Evaluate(_ context.Context, accessToken string, q domainauth.PolicyQuery) (bool, error) {
	s.EvaluateCalls++
	s.LastToken = accessToken
	s.LastQuery = q
	if s.Err != nil {
		return false, s.Err
	}
	return s.Allowed, nil
}
