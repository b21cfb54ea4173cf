// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxLoginAttempts = int64(5)
	loginWindow      = 15 * time.Minute
)

type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// hit increments key and starts its window on the first hit.
func (r *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		r.client.Expire(ctx, key, window)
	}
	return count, nil
}

// CheckLoginAttempt allows five attempts per ip/email pair every 15 minutes.
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error) {
	count, err := r.hit(ctx, fmt.Sprintf("ratelimit:login:%s:%s", ip, email), loginWindow)
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}

	remaining := maxLoginAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= maxLoginAttempts, remaining, nil
}

// ResetLoginAttempts resets the login attempt counter
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, email string) error {
	return r.client.Del(ctx, fmt.Sprintf("ratelimit:login:%s:%s", ip, email)).Err()
}

// CheckIntakeSubmission limits public lead submissions per client address.
func (r *RateLimiter) CheckIntakeSubmission(ctx context.Context, ip string, max int64, window time.Duration) (bool, error) {
	count, err := r.hit(ctx, fmt.Sprintf("ratelimit:intake:%s", ip), window)
	if err != nil {
		return false, fmt.Errorf("failed to increment intake counter: %w", err)
	}
	return count <= max, nil
}
