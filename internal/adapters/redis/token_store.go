package redis

// Package redis provides Redis-based stores for the authentication core.

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

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore keeps one TokenRecord per browser scope, keyed by sid.
// The Redis TTL tracks the access token expiry plus a grace window so a
// stored refresh token can still be used shortly after expiry.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
	grace  time.Duration
}

// NewTokenStore creates a Redis-backed token store. grace extends the key
// TTL past the access token expiry; zero means tokens vanish at expiry.
func NewTokenStore(client redis.UniversalClient, grace time.Duration) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: "token:",
		grace:  grace,
	}
}

// NewTokenStoreWithPrefix creates a token store with a custom key prefix.
func NewTokenStoreWithPrefix(client redis.UniversalClient, prefix string, grace time.Duration) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
		grace:  grace,
	}
}

func (s *TokenStore) Save(ctx context.Context, sid string, rec domainauth.TokenRecord) error {
	if sid == "" {
		return errors.New("sid cannot be empty")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt) + s.grace
	if ttl <= 0 {
		return errors.New("token record is already past its grace window")
	}

	return s.client.Set(ctx, s.prefix+sid, data, ttl).Err()
}

func (s *TokenStore) Load(ctx context.Context, sid string) (*domainauth.TokenRecord, error) {
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

	var rec domainauth.TokenRecord
	if unmarshalErr := json.Unmarshal([]byte(data), &rec); unmarshalErr != nil {
		// Corrupt value: treat as absent and self-heal.
		if deleteErr := s.Clear(ctx, sid); deleteErr != nil {
			return nil, fmt.Errorf("cleanup corrupt token record: %w", deleteErr)
		}
		return nil, nil
	}

	return &rec, nil
}

func (s *TokenStore) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+sid).Err()
}
