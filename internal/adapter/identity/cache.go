package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"partnerbot/internal/domain"
)

// MemoryCache is an in-process RefreshTokenCache for single-node deployments
// and tests.
type MemoryCache struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]string)}
}

func (m *MemoryCache) PutRefreshToken(_ context.Context, objectID, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[objectID] = refreshToken
	return nil
}

func (m *MemoryCache) GetRefreshToken(_ context.Context, objectID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[objectID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return tok, nil
}

func (m *MemoryCache) DeleteRefreshToken(_ context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, objectID)
	return nil
}

// RedisCache is a RefreshTokenCache backed by redis, for deployments that run
// more than one bot instance behind the gateway. Entries expire with ttl so
// abandoned refresh material does not accumulate.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a redis-backed cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisRefreshKey(objectID string) string { return "partnerbot:refresh:" + objectID }

func (r *RedisCache) PutRefreshToken(ctx context.Context, objectID, refreshToken string) error {
	return r.client.Set(ctx, redisRefreshKey(objectID), refreshToken, r.ttl).Err()
}

func (r *RedisCache) GetRefreshToken(ctx context.Context, objectID string) (string, error) {
	val, err := r.client.Get(ctx, redisRefreshKey(objectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (r *RedisCache) DeleteRefreshToken(ctx context.Context, objectID string) error {
	return r.client.Del(ctx, redisRefreshKey(objectID)).Err()
}
