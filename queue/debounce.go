package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Debouncer rate-limits triggers per job: the first call in a window passes, the rest are debounced.
type Debouncer interface {
	IsDebounced(ctx context.Context, jobID string) (bool, error)
}

type RedisDebouncer struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisDebouncer(rdb *redis.Client, window time.Duration) *RedisDebouncer {
	return &RedisDebouncer{rdb: rdb, window: window}
}

// IsDebounced returns true if a trigger for the job already passed inside the window,
// false if this call is allowed (and sets the debounce key).
func (d *RedisDebouncer) IsDebounced(ctx context.Context, jobID string) (bool, error) {
	args := redis.SetArgs{TTL: d.window, Mode: "NX"}
	_, err := d.rdb.SetArgs(ctx, debounceKey(jobID), "1", args).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set debounce: %w", err)
	}
	return false, nil
}

func debounceKey(jobID string) string {
	return "debounce:job:" + jobID
}

// MemoryDebouncer keeps the same semantics in process memory for single-instance deployments.
type MemoryDebouncer struct {
	clock  clockwork.Clock
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDebouncer(clock clockwork.Clock, window time.Duration) *MemoryDebouncer {
	return &MemoryDebouncer{clock: clock, window: window, seen: make(map[string]time.Time)}
}

const memoryDebouncePruneAt = 1024

func (d *MemoryDebouncer) IsDebounced(_ context.Context, jobID string) (bool, error) {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.seen) >= memoryDebouncePruneAt {
		for k, exp := range d.seen {
			if !now.Before(exp) {
				delete(d.seen, k)
			}
		}
	}

	if exp, ok := d.seen[jobID]; ok && now.Before(exp) {
		return true, nil
	}
	d.seen[jobID] = now.Add(d.window)
	return false, nil
}
