package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"partnerbot/internal/domain"
)

// RedisStore implements domain.PrincipalStore and domain.NonceStore on redis,
// for deployments that run more than one bot instance behind the gateway.
// Redis expires keys natively, so RedisStore registers no sweeper.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	nonceTTL time.Duration
}

// NewRedisStore creates a redis-backed store from a redis URL.
func NewRedisStore(redisURL string, ttl, nonceTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{
		client:   redis.NewClient(opts),
		ttl:      ttl,
		nonceTTL: nonceTTL,
	}, nil
}

// Close closes the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying redis client so other redis-backed
// components can share the connection pool.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func principalKey(conversationID string) string { return "partnerbot:principal:" + conversationID }
func nonceKey(conversationID string) string     { return "partnerbot:nonce:" + conversationID }

// Get implements domain.PrincipalStore.
func (s *RedisStore) Get(ctx context.Context, conversationID string) (domain.Principal, error) {
	raw, err := s.client.Get(ctx, principalKey(conversationID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Principal{}, domain.ErrPrincipalNotFound
		}
		return domain.Principal{}, fmt.Errorf("get principal: %w", err)
	}
	var p domain.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Principal{}, fmt.Errorf("unmarshal principal: %w", err)
	}
	return p, nil
}

// Put implements domain.PrincipalStore.
func (s *RedisStore) Put(ctx context.Context, conversationID string, p domain.Principal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}
	return s.client.Set(ctx, principalKey(conversationID), raw, s.ttl).Err()
}

// Delete implements domain.PrincipalStore.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, principalKey(conversationID)).Err()
}

// PutNonce implements domain.NonceStore.
func (s *RedisStore) PutNonce(ctx context.Context, conversationID, nonce string) error {
	return s.client.Set(ctx, nonceKey(conversationID), nonce, s.nonceTTL).Err()
}

// GetNonce implements domain.NonceStore.
func (s *RedisStore) GetNonce(ctx context.Context, conversationID string) (string, error) {
	nonce, err := s.client.Get(ctx, nonceKey(conversationID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNonceNotFound
		}
		return "", fmt.Errorf("get nonce: %w", err)
	}
	return nonce, nil
}

// DeleteNonce implements domain.NonceStore.
func (s *RedisStore) DeleteNonce(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, nonceKey(conversationID)).Err()
}
