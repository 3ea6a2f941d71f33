package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

var _ ports.StateStore = (*StateStore)(nil)

// StateStore keeps the single-use protocol state of one pending login
// attempt, keyed by sid. Records expire after ttl so an abandoned attempt
// cannot be replayed later.
type StateStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStateStore creates a Redis-backed login state store.
func NewStateStore(client redis.UniversalClient, ttl time.Duration) *StateStore {
	return &StateStore{
		client: client,
		prefix: "loginstate:",
		ttl:    ttl,
	}
}

// NewStateStoreWithPrefix creates a state store with a custom key prefix.
func NewStateStoreWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *StateStore {
	return &StateStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *StateStore) Save(ctx context.Context, sid string, st domainauth.ProtocolState) error {
	if sid == "" {
		return errors.New("sid cannot be empty")
	}
	if st.State == "" || st.Verifier == "" {
		return errors.New("protocol state requires state and verifier")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal protocol state: %w", err)
	}

	return s.client.Set(ctx, s.prefix+sid, data, s.ttl).Err()
}

func (s *StateStore) Load(ctx context.Context, sid string) (*domainauth.ProtocolState, error) {
	if sid == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, s.prefix+sid).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var st domainauth.ProtocolState
	if unmarshalErr := json.Unmarshal([]byte(data), &st); unmarshalErr != nil {
		if deleteErr := s.Clear(ctx, sid); deleteErr != nil {
			return nil, fmt.Errorf("cleanup corrupt protocol state: %w", deleteErr)
		}
		return nil, nil
	}

	return &st, nil
}

func (s *StateStore) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+sid).Err()
}
