package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter is a fixed-window attempt counter.
// Key format: login:<scope>:<client_key>
type LoginLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewLoginLimiter(client *redis.Client, max int64, window time.Duration) *LoginLimiter {
	return &LoginLimiter{client: client, max: max, window: window}
}

// Allow counts one attempt for key and reports whether it is within the
// limit. The window starts with the first attempt.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("login limiter: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("login limiter: %w", err)
		}
	}
	return n <= l.max, nil
}

// Reset clears the counter for key, used after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *LoginLimiter) key(key string) string {
	return "login:" + key
}
