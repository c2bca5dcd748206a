package session

import (
	"context"
	"sync"
	"time"

	"dialout-picker/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// BatchLock serializes batches across sessions that dial into the same
// conference. owner is the batch id; re-acquiring with the same owner
// extends the hold.
type BatchLock interface {
	Acquire(ctx context.Context, key, owner string) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

// MemoryLock is a BatchLock for a single replica.
type MemoryLock struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{owners: make(map[string]string)}
}

func (l *MemoryLock) Acquire(ctx context.Context, key, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.owners[key]; ok && cur != owner {
		return false, nil
	}
	l.owners[key] = owner
	return true, nil
}

func (l *MemoryLock) Release(ctx context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[key] == owner {
		delete(l.owners, key)
	}
	return nil
}

// RedisLock shares the lock between replicas. TTL must cover one dial
// attempt plus the gap; the session re-acquires before every attempt.
type RedisLock struct {
	Client redis.Scripter
	Prefix string
	TTL    time.Duration
}

func NewRedisLock(rdb redis.Scripter, ttl time.Duration) *RedisLock {
	return &RedisLock{Client: rdb, Prefix: "dialout:batch:", TTL: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context, key, owner string) (bool, error) {
	return utils.AcquireLock(ctx, l.Client, l.Prefix+key, owner, l.TTL)
}

func (l *RedisLock) Release(ctx context.Context, key, owner string) error {
	_, err := utils.ReleaseLock(ctx, l.Client, l.Prefix+key, owner)
	return err
}
