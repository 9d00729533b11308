// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, allowing
// rate limit state to be shared across API instances. It uses a fixed window
// counter: INCR on the key, with the window TTL set on the first increment.
//
// The store fails open: if Redis is unavailable the request is allowed and
// the error is counted, so a Redis outage degrades rate limiting rather than
// taking down the API.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a new Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// WithMetrics attaches middleware metrics for fail-open event tracking.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		s.failOpen(key, err)
		return true, config.RequestsPerWindow, 0
	}

	count := incr.Val()

	// First hit in a window starts its expiry clock. A key can also exist
	// without a TTL after a partial earlier failure; set it then too.
	if count == 1 || ttl.Val() < 0 {
		if err := s.client.Expire(ctx, key, config.WindowDuration).Err(); err != nil {
			s.failOpen(key, err)
			return true, config.RequestsPerWindow, 0
		}
		ttl.SetVal(config.WindowDuration)
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, config.RequestsPerWindow - int(count), 0
	}

	retryAfter := int(ttl.Val().Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// failOpen records a Redis failure and logs it; the caller allows the request.
func (s *RedisRateLimitStore) failOpen(key string, err error) {
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
	slog.Warn("rate limit store unavailable, failing open",
		"key", key,
		"error", err)
}

// ensure interface compliance
var (
	_ RateLimitStore = (*RedisRateLimitStore)(nil)
	_ RateLimitStore = (*InMemoryRateLimitStore)(nil)
)
