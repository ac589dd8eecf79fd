package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

var ErrLockNotHeld = errors.New("lock not held")

type RedisLockOptions struct {
	TtlS    int
	Retries int
}

// RedisLock hands out named leases. Locks are tracked by key so the caller
// only needs the key to release one.
type RedisLock struct {
	client *redislock.Client
	mu     sync.Mutex
	locks  map[string]*redislock.Lock
}

func NewRedisLock(client *RedisClient) *RedisLock {
	return &RedisLock{
		client: redislock.New(client.UniversalClient),
		locks:  make(map[string]*redislock.Lock),
	}
}

// Acquire obtains the lease for key. It returns redislock.ErrNotObtained once
// the retries are spent.
func (l *RedisLock) Acquire(ctx context.Context, key string, opts RedisLockOptions) error {
	ttl := time.Duration(opts.TtlS) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	retry := redislock.NoRetry()
	if opts.Retries > 0 {
		retry = redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), opts.Retries)
	}

	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: retry})
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.locks[key] = lock
	l.mu.Unlock()
	return nil
}

func (l *RedisLock) Release(key string) error {
	l.mu.Lock()
	lock, ok := l.locks[key]
	delete(l.locks, key)
	l.mu.Unlock()

	if !ok {
		return ErrLockNotHeld
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}

// IsNotObtained reports whether err means another holder owns the lease
func IsNotObtained(err error) bool {
	return errors.Is(err, redislock.ErrNotObtained)
}
