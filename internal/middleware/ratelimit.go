package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines the rate limiting configuration.
// Valid values:
//   - RequestsPerWindow: must be > 0
//   - WindowDuration: must be > 0
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per window.
	RequestsPerWindow int
	// WindowDuration is the time window for the rate limit.
	WindowDuration time.Duration
}

// Validate checks that the RateLimitConfig has valid values.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// RateLimitStore defines the interface for rate limit state storage.
type RateLimitStore interface {
	// Allow counts a request for key. It reports whether the request is
	// allowed, how many requests remain in the window and, when blocked,
	// the number of seconds until the window resets.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

// bucket represents a rate limit bucket for a single key.
type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore implements RateLimitStore using an in-memory map.
// It uses a simple fixed window counter algorithm and is safe for
// concurrent use. Limits are per process.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates a new in-memory rate limit store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	b, exists := s.buckets[key]
	if !exists || !now.Before(b.windowEnd) {
		s.buckets[key] = &bucket{
			count:     1,
			windowEnd: now.Add(config.WindowDuration),
		}
		return true, config.RequestsPerWindow - 1, 0
	}

	if b.count < config.RequestsPerWindow {
		b.count++
		return true, config.RequestsPerWindow - b.count, 0
	}

	return false, 0, ceilSeconds(b.windowEnd.Sub(now))
}

// Cleanup removes expired buckets to prevent memory leaks.
// Call it periodically; 2-5x the longest configured WindowDuration works well.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, b := range s.buckets {
		if !now.Before(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *InMemoryRateLimitStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// rateLimitKeyPrefix namespaces rate limit counters in Redis.
const rateLimitKeyPrefix = "listrank:ratelimit:"

// fixedWindowScript increments the window counter, starts the window on the
// first hit and returns the count and the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// in Redis, so every replica shares one limit per key.
//
// It fails open: when Redis is unreachable the request is allowed with the
// full quota reported, and the error is counted.
type RedisRateLimitStore struct {
	client  redis.UniversalClient
	metrics *Metrics
	logger  *slog.Logger
}

// NewRedisRateLimitStore creates a Redis backed store.
func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, logger: slog.Default()}
}

// WithMetrics sets the metrics used to count fail-open events.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{rateLimitKeyPrefix + key}, config.WindowDuration.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		s.metrics.IncRateLimitRedisErrors()
		s.logger.WarnContext(ctx, "rate limit check failed, allowing request", "error", err)
		return true, config.RequestsPerWindow, 0
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if count > config.RequestsPerWindow {
		return false, 0, ceilSeconds(ttl)
	}
	return true, config.RequestsPerWindow - count, 0
}

func ceilSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s <= 0 {
		return 1
	}
	return s
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc returns a KeyFunc that uses the client's IP address.
// X-Forwarded-For and X-Real-IP are trusted, so the server must sit behind
// a proxy that sets them.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return "ip:" + strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return "ip:" + strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr
		}
		return "ip:" + host
	}
}

// keyType returns the prefix of a rate limit key, used as a metric label.
func keyType(key string) string {
	if t, _, ok := strings.Cut(key, ":"); ok {
		return t
	}
	return "other"
}

// RateLimiter is a middleware that limits request rates.
// It sets X-RateLimit-Limit and X-RateLimit-Remaining on every response and
// returns HTTP 429 Too Many Requests when the limit is exceeded.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			endpoint := normalizePath(r.URL.Path)
			metrics.IncRateLimitRequests(endpoint, keyType(key))

			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				metrics.IncRateLimitBlocked(endpoint, keyType(key))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				// X-RateLimit-Reset is a Unix timestamp
				resetTime := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))
				writeError(w, r.Context(), http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
