package fraud

import (
	"context"
	"sync"
	"time"

	"dao-governance-go/internal/models"
)

// RateLimiter answers whether a user may perform an action right now.
// A denial is a burst signal for the gate, not a hard rejection on its
// own; the gate folds it into the risk score.
type RateLimiter interface {
	Allow(ctx context.Context, userId string, action models.FraudActionType) (bool, error)
}

// MemoryRateLimiter enforces a minimum interval between repeats of the
// same action by the same user. Single-process only; deployments with
// more than one instance use the Redis limiter.
type MemoryRateLimiter struct {
	mu          sync.Mutex
	lastAction  map[string]time.Time
	minInterval time.Duration
	now         func() time.Time
}

func NewMemoryRateLimiter(minInterval time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		lastAction:  make(map[string]time.Time),
		minInterval: minInterval,
		now:         time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, userId string, action models.FraudActionType) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userId + ":" + string(action)
	now := l.now()
	if last, ok := l.lastAction[key]; ok && now.Sub(last) < l.minInterval {
		return false, nil
	}
	l.lastAction[key] = now
	return true, nil
}
