package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStoreOrSkip connects to the local Redis used for shared rate limit
// state, skipping when none is running.
func redisStoreOrSkip(t *testing.T) (*RedisRateLimitStore, *redis.Client) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisRateLimitStore(client), client
}

// limiterKey builds a unique key in the shape the server's key funcs
// produce, so concurrent test runs never collide.
func limiterKey(t *testing.T, kind, subject string) string {
	t.Helper()
	return fmt.Sprintf("%s:%s:%d", kind, subject, time.Now().UnixNano())
}

func TestRedisRateLimitStore_EnforcesSearchQuota(t *testing.T) {
	store, client := redisStoreOrSkip(t)

	// A small window shaped like the search limit, sized down so the
	// test drains it quickly.
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	key := limiterKey(t, "search", "203.0.113.5")
	ctx := context.Background()
	defer client.Del(ctx, key)

	for i := 0; i < config.RequestsPerWindow; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, config)
		if !allowed {
			t.Fatalf("request %d within quota was blocked", i+1)
		}
		if want := config.RequestsPerWindow - 1 - i; remaining != want {
			t.Errorf("request %d: expected remaining=%d, got %d", i+1, want, remaining)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("request over quota was allowed")
	}
	if remaining != 0 {
		t.Errorf("expected remaining=0 when blocked, got %d", remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("expected retryAfter within the window, got %d", retryAfter)
	}
}

func TestRedisRateLimitStore_KeysAreIndependent(t *testing.T) {
	store, client := redisStoreOrSkip(t)

	// Admin endpoints key by token subject; one admin draining their
	// quota must not affect another.
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	keyA := limiterKey(t, "admin", "ops-admin-a")
	keyB := limiterKey(t, "admin", "ops-admin-b")
	ctx := context.Background()
	defer client.Del(ctx, keyA, keyB)

	allowedA, _, _ := store.Allow(ctx, keyA, config)
	allowedB, _, _ := store.Allow(ctx, keyB, config)
	if !allowedA || !allowedB {
		t.Fatal("first request per subject must be allowed")
	}

	blockedA, _, _ := store.Allow(ctx, keyA, config)
	blockedB, _, _ := store.Allow(ctx, keyB, config)
	if blockedA || blockedB {
		t.Error("both subjects should be at their limit")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	store, client := redisStoreOrSkip(t)

	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}
	key := limiterKey(t, "search", "198.51.100.9")
	ctx := context.Background()
	defer client.Del(ctx, key)

	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, key, config); allowed {
		t.Fatal("second request should be blocked")
	}

	time.Sleep(150 * time.Millisecond)

	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	// Unreachable Redis. Ranking reads are cheap, so the limiter admits
	// traffic rather than turning a Redis outage into an API outage.
	client := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	config := DefaultSearchLimit()

	allowed, remaining, _ := store.Allow(context.Background(), "search:203.0.113.5", config)
	if !allowed {
		t.Error("expected fail-open when Redis is unavailable")
	}
	if remaining != config.RequestsPerWindow {
		t.Errorf("expected full quota reported on error, got %d", remaining)
	}
}
