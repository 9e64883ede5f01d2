// Package identity issues the human-readable ticket numbers printed on
// every customer conversation, in the form TKT-YYYYMMDD-NNNN.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Allocator hands out monotonically increasing per-day ticket numbers.
type Allocator interface {
	Next(ctx context.Context, now time.Time) (string, error)
}

// redisAllocator uses a per-day Redis counter so numbers stay unique
// across replicas. Keys expire after 48h, long enough to outlive the day
// they count.
type redisAllocator struct {
	client *redis.Client
}

// NewRedisAllocator creates an allocator backed by Redis INCR.
func NewRedisAllocator(client *redis.Client) Allocator {
	return &redisAllocator{client: client}
}

func (a *redisAllocator) Next(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")
	key := fmt.Sprintf("ticket_seq:%s", day)

	seq, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("allocate ticket number: %w", err)
	}
	if seq == 1 {
		a.client.Expire(ctx, key, 48*time.Hour)
	}
	return format(day, seq), nil
}

// localAllocator is a process-local fallback for single-instance
// deployments and tests.
type localAllocator struct {
	mu   sync.Mutex
	day  string
	next int64
}

// NewLocalAllocator creates an in-process allocator.
func NewLocalAllocator() Allocator {
	return &localAllocator{}
}

func (a *localAllocator) Next(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.day != day {
		a.day = day
		a.next = 0
	}
	a.next++
	return format(day, a.next), nil
}

func format(day string, seq int64) string {
	return fmt.Sprintf("TKT-%s-%04d", day, seq)
}
