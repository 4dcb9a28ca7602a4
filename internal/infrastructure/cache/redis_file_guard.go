package cache

import (
	"context"
	"fmt"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the claim only when it still carries our token, so a
// worker whose claim expired cannot release a claim taken over by another.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisFileGuard implements InFlightGuard using Redis so that every
// instance polling the same bucket shares in-flight claims
type RedisFileGuard struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	token     string
}

// NewRedisFileGuard connects to Redis and verifies the connection
func NewRedisFileGuard(ctx context.Context, addr, password string, db int, keyPrefix string, ttl time.Duration) (*RedisFileGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisFileGuardWithClient(client, keyPrefix, ttl), nil
}

// NewRedisFileGuardWithClient creates a guard with an existing Redis client
func NewRedisFileGuardWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisFileGuard {
	if keyPrefix == "" {
		keyPrefix = "afp:inflight:"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisFileGuard{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		token:     uuid.NewString(),
	}
}

// TryAcquire claims the file with SETNX. The TTL frees the claim if this
// process dies mid-file.
func (g *RedisFileGuard) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, g.token, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim file: %w", err)
	}
	return ok, nil
}

// Release drops the claim if this process still holds it
func (g *RedisFileGuard) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.keyPrefix + key}, g.token).Err(); err != nil {
		return fmt.Errorf("failed to release file claim: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (g *RedisFileGuard) Close() error {
	return g.client.Close()
}

// Ensure RedisFileGuard implements InFlightGuard
var _ appcert.InFlightGuard = (*RedisFileGuard)(nil)
