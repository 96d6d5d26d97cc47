package bundle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// context was done.
var ErrLockTimeout = errors.New("timed out waiting for model lock")

// Locker serializes bundle mutations across processes. The returned function
// releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker does nothing. Router already serializes mutations within one
// process, so this is enough for single-replica deployments.
type NopLocker struct{}

// Lock implements Locker.
func (NopLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance Redis lock (SET NX PX with a random token).
type RedisLocker struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder can
// block others.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:    client,
		prefix:    "listrank:lock:",
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
	}
}

// Lock implements Locker. It polls until the lock is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	return func() {
		// release even if the caller's context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
	}, nil
}
