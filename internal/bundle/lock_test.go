package bundle

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient returns a client for a local Redis or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	client := redisClient(t)
	locker := NewRedisLocker(client, 5*time.Second)
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	unlock, err := locker.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, key); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held, got %v", err)
	}

	unlock()

	unlock2, err := locker.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client := redisClient(t)
	locker := NewRedisLocker(client, 100*time.Millisecond)
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	unlock, err := locker.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// let the lock expire and someone else take it
	time.Sleep(150 * time.Millisecond)
	unlockOther, err := locker.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	defer unlockOther()

	unlock()

	exists, err := client.Exists(context.Background(), "listrank:lock:"+key).Result()
	if err != nil {
		t.Fatal(err)
	}
	if exists != 1 {
		t.Error("stale release removed another holder's lock")
	}
}

func TestNopLocker(t *testing.T) {
	unlock, err := NopLocker{}.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	unlock()
}
