package locker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker implements DistributedLocker with Redsync (Redlock) on a
// single Redis deployment. Lock keys live under "<namespace>:lock:" so they
// share the namespace of the service's cache entries.
type RedisLocker struct {
	rs        *redsync.Redsync
	namespace string
	logger    *zap.Logger
	mutexes   map[string]*redsync.Mutex
	mu        sync.Mutex
}

// NewRedisLocker creates a Redis-based distributed locker. An empty
// namespace leaves keys unprefixed.
func NewRedisLocker(client redis.UniversalClient, namespace string, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		rs:        redsync.New(goredis.NewPool(client)),
		namespace: namespace,
		logger:    logger,
		mutexes:   make(map[string]*redsync.Mutex),
	}
}

func (r *RedisLocker) key(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":lock:" + key
}

// Acquire tries once to take the lock and never blocks. Contention is
// reported as (false, nil); only Redis failures are errors.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	mutex := r.rs.NewMutex(
		r.key(key),
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken") {
			r.logger.Debug("lock already held by another instance", zap.String("key", key))
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	r.mu.Lock()
	r.mutexes[key] = mutex
	r.mu.Unlock()

	r.logger.Debug("lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return true, nil
}

// Release releases the lock if and only if this instance owns it. Calling
// it for a lock held elsewhere, or already expired, is a no-op.
func (r *RedisLocker) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	mutex, exists := r.mutexes[key]
	delete(r.mutexes, key)
	r.mu.Unlock()

	if !exists {
		r.logger.Debug("lock not owned by this instance", zap.String("key", key))
		return nil
	}

	ok, err := mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	r.logger.Debug("lock released", zap.String("key", key), zap.Bool("owned", ok))
	return nil
}
