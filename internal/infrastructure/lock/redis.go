package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisLocker serializes holders of the same key across processes
type RedisLocker struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	wait      time.Duration
	retryStep time.Duration
}

// NewRedisLocker creates a redis backed locker.
// ttl bounds how long a crashed holder can block others; a live holder renews
// the lease every ttl/3. wait bounds Lock.
func NewRedisLocker(client *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client:    client,
		prefix:    prefix,
		ttl:       ttl,
		wait:      wait,
		retryStep: 100 * time.Millisecond,
	}
}

// Lock takes key with SET NX, retrying until the wait runs out
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, fullKey)
		}

		select {
		case <-time.After(l.retryStep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	renewed := make(chan error, 1)
	go func() {
		renewed <- keepAlive(renewCtx, l.ttl/3, func(ctx context.Context) (bool, error) {
			n, err := extendScript.Run(ctx, l.client, []string{fullKey}, token, l.ttl.Milliseconds()).Int()
			return n == 1, err
		})
	}()

	return func(ctx context.Context) error {
		stopRenew()
		if err := <-renewed; err != nil {
			return fmt.Errorf("%w: %s", err, fullKey)
		}
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release lock %s: %w", fullKey, err)
		}
		return nil
	}, nil
}
