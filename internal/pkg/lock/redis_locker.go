package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if we still own the lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a lease lock shared by every API replica. A lease that
// outlives its holder expires after ttl.
type RedisLocker struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
	maxWait   time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl, maxWait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 3 * time.Second
	}
	return &RedisLocker{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		retryWait: 25 * time.Millisecond,
		maxWait:   maxWait,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	fullKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("lock: acquire %s: %w", fullKey, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(l.retryWait):
		case <-ctx.Done():
			return nil, ErrLockTimeout
		}
	}

	return func() {
		// Release on a fresh context: the caller's may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.rdb, []string{fullKey}, token).Err()
	}, nil
}
