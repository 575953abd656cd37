package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/pkg/locker"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (s *countingSyncer) SyncAll(ctx context.Context) []service.SyncResult {
	s.calls.Add(1)
	return []service.SyncResult{
		{Provider: "dea", Count: 10, Skipped: 1},
		{Provider: "mirror", Error: s.err},
	}
}

func newLocker(t *testing.T) (*miniredis.Miniredis, *locker.RedisLocker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, locker.NewRedisLocker(client, "datacube", zap.NewNop()), client
}

func TestSyncScheduler_RunOnce_HoldsLockAfterSuccess(t *testing.T) {
	mr, lk, client := newLocker(t)
	syncer := &countingSyncer{}
	cfg := SyncConfig{Interval: time.Minute}

	first := NewSyncScheduler(syncer, cfg, zap.NewNop(), lk)
	second := NewSyncScheduler(syncer, cfg, zap.NewNop(), locker.NewRedisLocker(client, "datacube", zap.NewNop()))

	ctx := context.Background()
	assert.True(t, first.RunOnce(ctx))
	assert.True(t, mr.Exists("datacube:lock:"+LockKey))

	// Within the cooldown no instance repeats the pass.
	assert.False(t, second.RunOnce(ctx))
	assert.Equal(t, int32(1), syncer.calls.Load())

	mr.FastForward(2 * time.Minute)
	assert.True(t, second.RunOnce(ctx))
	assert.Equal(t, int32(2), syncer.calls.Load())
}

func TestSyncScheduler_RunOnce_ReleasesLockAfterFailure(t *testing.T) {
	mr, lk, _ := newLocker(t)
	syncer := &countingSyncer{err: errors.New("upstream down")}
	s := NewSyncScheduler(syncer, SyncConfig{Interval: time.Minute}, zap.NewNop(), lk)

	ctx := context.Background()
	assert.True(t, s.RunOnce(ctx))
	assert.False(t, mr.Exists("datacube:lock:"+LockKey))

	assert.True(t, s.RunOnce(ctx))
	assert.Equal(t, int32(2), syncer.calls.Load())
}

func TestSyncScheduler_StartOnStartup(t *testing.T) {
	_, lk, _ := newLocker(t)
	syncer := &countingSyncer{}
	s := NewSyncScheduler(syncer, SyncConfig{Interval: time.Hour}, zap.NewNop(), lk)

	s.Start(true)
	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestSyncScheduler_StopWithoutStart(t *testing.T) {
	_, lk, _ := newLocker(t)
	s := NewSyncScheduler(&countingSyncer{}, SyncConfig{Interval: time.Minute}, zap.NewNop(), lk)
	assert.NotPanics(t, s.Stop)
}
