package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryLimiter is a fixed-window limiter for single-instance deployments
type MemoryLimiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

type window struct {
	count int
	start time.Time
}

func NewMemoryLimiter(requestsPerMinute int) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   requestsPerMinute,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok || now.Sub(c.start) >= time.Minute {
		l.clients[key] = &window{count: 1, start: now}
		l.sweep(now)
		return true, nil
	}
	c.count++
	return c.count <= l.limit, nil
}

// sweep drops windows idle for more than two minutes
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, c := range l.clients {
		if now.Sub(c.start) > 2*time.Minute {
			delete(l.clients, k)
		}
	}
}

// RedisLimiter shares fixed-window counters across instances
type RedisLimiter struct {
	client *redis.Client
	limit  int
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, requestsPerMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, limit: requestsPerMinute, prefix: "ratelimit:", now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().Unix() / 60
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, bucket)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, 2*time.Minute)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
