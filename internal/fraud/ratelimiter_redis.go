package fraud

import (
	"context"
	"fmt"
	"time"

	"dao-governance-go/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is the multi-instance limiter backend. SET NX with a
// TTL equal to the minimum interval is both the check and the claim, so
// concurrent instances cannot double-allow.
type RedisRateLimiter struct {
	client      *redis.Client
	minInterval time.Duration
}

func NewRedisRateLimiter(cfg models.FraudConfig, minInterval time.Duration) (*RedisRateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.RedisAddr, err)
	}

	return &RedisRateLimiter{client: client, minInterval: minInterval}, nil
}

func (l *RedisRateLimiter) Allow(ctx context.Context, userId string, action models.FraudActionType) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", userId, action)
	ok, err := l.client.SetNX(ctx, key, 1, l.minInterval).Result()
	if err != nil {
		return false, fmt.Errorf("rate limiter check failed: %w", err)
	}
	return ok, nil
}

func (l *RedisRateLimiter) Close() error {
	return l.client.Close()
}
