// Package health holds the readiness checks behind /ready.
package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the Redis instance shared by the rate limiter and the
// registration lock.
type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck fails when PING does not answer PONG.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	pong, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("redis ping: unexpected reply %q", pong)
	}
	return nil
}
