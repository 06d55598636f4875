package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another worker holds the critical section.
var ErrLockHeld = errors.New("shared: lock already held")

// BankAccountLockKey builds the redis key serialising running-balance
// restatement per bank account.
func BankAccountLockKey(accountID int64) string {
	return fmt.Sprintf("banking:account:%d:restate", accountID)
}

// Locker wraps redis SETNX-based mutual exclusion for short critical sections.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker returns a Locker with the supplied TTL guarding against stuck holders.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lock or returns ErrLockHeld. The returned release func
// deletes the key only when the token still matches, so an expired holder
// cannot release a successor's lock.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		// No redis configured (single-process deployments, tests): no-op lock.
		return func(context.Context) error { return nil }, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func(ctx context.Context) error {
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		return l.client.Eval(ctx, script, []string{key}, token).Err()
	}
	return release, nil
}

// AcquireWait retries Acquire until the lock is obtained or ctx is done.
func (l *Locker) AcquireWait(ctx context.Context, key string) (func(context.Context) error, error) {
	for {
		release, err := l.Acquire(ctx, key)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
