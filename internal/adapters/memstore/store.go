package memstore

// Package memstore provides in-process token and state stores for the
// "memory" backend tier. Records vanish on restart; development and
// single-instance test deployments only.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

var (
	_ ports.TokenStore = (*TokenStore)(nil)
	_ ports.StateStore = (*StateStore)(nil)
)

// TokenStore keeps token records in a mutex-guarded map. Records past their
// grace window read as absent and are dropped lazily on Load.
type TokenStore struct {
	grace time.Duration

	mu      sync.Mutex
	records map[string]domainauth.TokenRecord
}

// NewTokenStore constructs an empty in-memory token store.
func NewTokenStore(grace time.Duration) *TokenStore {
	return &TokenStore{
		grace:   grace,
		records: make(map[string]domainauth.TokenRecord),
	}
}

func (s *TokenStore) Save(_ context.Context, sid string, rec domainauth.TokenRecord) error {
	if sid == "" {
		return errors.New("sid is required")
	}
	if time.Until(rec.ExpiresAt)+s.grace <= 0 {
		return errors.New("token record is already past its grace window")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sid] = rec
	return nil
}

func (s *TokenStore) Load(_ context.Context, sid string) (*domainauth.TokenRecord, error) {
	if sid == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sid]
	if !ok {
		return nil, nil
	}
	if time.Until(rec.ExpiresAt)+s.grace <= 0 {
		delete(s.records, sid)
		return nil, nil
	}
	return &rec, nil
}

func (s *TokenStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sid)
	return nil
}

// StateStore keeps pending login attempts in a mutex-guarded map. Attempts
// older than the TTL read as absent.
type StateStore struct {
	ttl time.Duration

	mu     sync.Mutex
	states map[string]domainauth.ProtocolState
}

// NewStateStore constructs an empty in-memory state store.
func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{
		ttl:    ttl,
		states: make(map[string]domainauth.ProtocolState),
	}
}

func (s *StateStore) Save(_ context.Context, sid string, st domainauth.ProtocolState) error {
	if sid == "" {
		return errors.New("sid is required")
	}
	if st.State == "" || st.Verifier == "" {
		return errors.New("protocol state requires state and verifier")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sid] = st
	return nil
}

func (s *StateStore) Load(_ context.Context, sid string) (*domainauth.ProtocolState, error) {
	if sid == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[sid]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && !st.CreatedAt.IsZero() && time.Since(st.CreatedAt) > s.ttl {
		delete(s.states, sid)
		return nil, nil
	}
	return &st, nil
}

func (s *StateStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sid)
	return nil
}
