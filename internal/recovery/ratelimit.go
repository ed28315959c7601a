package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rate limit policy for code requests.
const (
	// RequestLimit is the number of code requests allowed per email per
	// window.
	RequestLimit = 3

	// RequestWindow is the rate limit window.
	RequestWindow = time.Hour
)

// Limiter throttles recovery code requests per email.
type Limiter interface {
	// Allow reports whether another code may be issued for the email.
	Allow(ctx context.Context, email string) (bool, error)
}

// RedisLimiter is a fixed-window Redis implementation of Limiter. The
// counter is keyed by a hash of the email so addresses never appear in
// Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a new Redis limiter with the default policy.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, limit: RequestLimit, window: RequestWindow}
}

// Allow reports whether another code may be issued for the email.
func (l *RedisLimiter) Allow(ctx context.Context, email string) (bool, error) {
	sum := sha256.Sum256([]byte(email))
	key := "recovery:requests:" + hex.EncodeToString(sum[:16])

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("recovery rate limit: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("recovery rate limit: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// Ensure RedisLimiter implements Limiter.
var _ Limiter = (*RedisLimiter)(nil)

// NopLimiter allows everything. Used when no Redis is configured.
type NopLimiter struct{}

// Allow implements Limiter.
func (NopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Ensure NopLimiter implements Limiter.
var _ Limiter = NopLimiter{}
