package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// newTestRedis connects to a local Redis or skips the test.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	ctx := context.Background()
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { client.Del(context.Background(), rateLimitKeyPrefix+key) })

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if remaining != 4-i {
			t.Errorf("request %d: expected remaining=%d, got %d", i+1, 4-i, remaining)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("6th request should be blocked")
	}
	if remaining != 0 {
		t.Errorf("expected remaining=0 when blocked, got %d", remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("expected retryAfter between 1 and 60, got %d", retryAfter)
	}
}

func TestRedisRateLimitStore_DifferentKeys(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	ctx := context.Background()
	suffix := strconv.FormatInt(time.Now().UnixNano(), 10)
	a, b := "ip:a-"+suffix, "ip:b-"+suffix
	t.Cleanup(func() { client.Del(context.Background(), rateLimitKeyPrefix+a, rateLimitKeyPrefix+b) })

	if allowed, _, _ := store.Allow(ctx, a, config); !allowed {
		t.Fatal("first request for a should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, a, config); allowed {
		t.Error("second request for a should be blocked")
	}
	if allowed, _, _ := store.Allow(ctx, b, config); !allowed {
		t.Error("b has its own window and should be allowed")
	}
}

func TestRedisRateLimitStore_WindowExpires(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 200 * time.Millisecond}

	ctx := context.Background()
	key := "expire-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { client.Del(context.Background(), rateLimitKeyPrefix+key) })

	store.Allow(ctx, key, config)
	if allowed, _, _ := store.Allow(ctx, key, config); allowed {
		t.Fatal("second request should be blocked inside the window")
	}
	time.Sleep(300 * time.Millisecond)
	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after the window should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	metrics := NewMetrics()
	store := NewRedisRateLimitStore(client).WithMetrics(metrics)
	config := RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}

	allowed, remaining, retryAfter := store.Allow(context.Background(), "ip:1.2.3.4", config)
	if !allowed {
		t.Error("expected request to be allowed when Redis is unreachable")
	}
	if remaining != 10 {
		t.Errorf("expected full quota reported, got %d", remaining)
	}
	if retryAfter != 0 {
		t.Errorf("expected retryAfter 0, got %d", retryAfter)
	}
	if got := testutil.ToFloat64(metrics.rateLimitRedisErrors); got != 1 {
		t.Errorf("redis errors = %v, want 1", got)
	}
}
