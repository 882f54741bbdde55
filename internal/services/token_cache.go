package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache memoizes resolved access tokens so that hot tokens skip the
// access_tokens lookup. Get returns "" on a miss.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	GenerateKey(operation, key string) string
}

// RedisTokenCache is a TokenCache backed by Redis.
type RedisTokenCache struct {
	client      *redis.Client
	serviceName string
}

// NewRedisTokenCache connects lazily to addr; keys are namespaced by serviceName.
func NewRedisTokenCache(addr, serviceName string) *RedisTokenCache {
	return &RedisTokenCache{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
	}
}

// Ping checks connectivity.
func (r *RedisTokenCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisTokenCache) Close() error {
	return r.client.Close()
}

func (r *RedisTokenCache) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *RedisTokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisTokenCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisTokenCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}
