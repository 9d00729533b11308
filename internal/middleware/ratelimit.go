// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig bounds how many requests one key may make per window.
type RateLimitConfig struct {
	// RequestsPerWindow is the quota for one window. Must be > 0.
	RequestsPerWindow int
	// WindowDuration is the length of the fixed window. Must be > 0.
	WindowDuration time.Duration
}

// Validate reports whether the config describes a usable limit.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

var (
	defaultGlobalLimit = RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}
	defaultAdminLimit  = RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}
	defaultSearchLimit = RateLimitConfig{RequestsPerWindow: 30, WindowDuration: time.Minute}
)

// DefaultGlobalLimit returns a copy of the service-wide limit (100/min).
func DefaultGlobalLimit() RateLimitConfig { return defaultGlobalLimit }

// DefaultAdminLimit returns a copy of the admin endpoint limit (10/min).
// Score corrections and backfills are expensive, so the quota is tight.
func DefaultAdminLimit() RateLimitConfig { return defaultAdminLimit }

// DefaultSearchLimit returns a copy of the search endpoint limit (30/min).
func DefaultSearchLimit() RateLimitConfig { return defaultSearchLimit }

// RateLimitStore tracks request counts per key. Implementations exist for
// in-memory state (single instance) and Redis (shared across replicas).
type RateLimitStore interface {
	// Allow reports whether a request under key fits the quota, how many
	// requests remain in the current window, and, when denied, how many
	// seconds until the window resets.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

// bucket is one key's fixed-window counter.
type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore is a fixed-window counter backed by a map. Suitable
// for a single instance; replicated deployments should use the Redis store
// so all replicas share one quota.
type InMemoryRateLimitStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{buckets: make(map[string]*bucket)}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	b, ok := s.buckets[key]
	if !ok || now.After(b.windowEnd) {
		s.buckets[key] = &bucket{count: 1, windowEnd: now.Add(config.WindowDuration)}
		return true, config.RequestsPerWindow - 1, 0
	}
	if b.count < config.RequestsPerWindow {
		b.count++
		return true, config.RequestsPerWindow - b.count, 0
	}

	retryAfter := int(b.windowEnd.Sub(now).Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// Cleanup drops buckets whose window has ended. Run it periodically, at a
// few multiples of the longest configured WindowDuration.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, b := range s.buckets {
		if now.After(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by client IP. Proxy headers take precedence over
// the socket address: the first hop of X-Forwarded-For, then X-Real-IP.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// RemoteAddr may already be a bare address.
			return r.RemoteAddr
		}
		return host
	}
}

// SubjectKeyFunc keys authenticated requests by admin subject so an operator
// console behind a NAT is not throttled as one client. Anonymous requests
// fall back to the IP key.
func SubjectKeyFunc() KeyFunc {
	ipFunc := IPKeyFunc()
	return func(r *http.Request) string {
		if subject := GetAdminSubject(r.Context()); subject != "" {
			return "admin:" + subject
		}
		return "ip:" + ipFunc(r)
	}
}

// RateLimiter rejects requests over quota with 429 Too Many Requests. Every
// response carries X-RateLimit-Limit and X-RateLimit-Remaining; denials add
// Retry-After and X-RateLimit-Reset (Unix seconds).
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			keyType := "ip"
			if strings.HasPrefix(key, "admin:") {
				keyType = "admin"
			}

			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)
			if metrics != nil {
				metrics.IncRateLimitRequests(r.URL.Path, keyType)
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			if metrics != nil {
				metrics.IncRateLimitBlocked(r.URL.Path, keyType)
			}
			// Surface the code to the logging middleware through the writer,
			// since reassigning r here is invisible to outer middleware.
			UpdateResponseContext(w, SetErrorCode(r.Context(), "rate_limit_exceeded"))

			reset := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		})
	}
}
