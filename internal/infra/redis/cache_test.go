package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client, zap.NewNop(), "datacube"), mr
}

func TestCache_SetGet(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "summary:ls8", []byte(`{"dataset_count":3}`), time.Minute))

	got, err := cache.Get(ctx, "summary:ls8")
	require.NoError(t, err)
	assert.JSONEq(t, `{"dataset_count":3}`, string(got))
	assert.True(t, mr.Exists("datacube:summary:ls8"), "key should be prefixed")
}

func TestCache_GetMiss(t *testing.T) {
	cache, _ := setupTestCache(t)

	got, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_TTLExpires(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_Delete(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, cache.Delete(ctx, "a", "b", "never-set"))

	assert.False(t, mr.Exists("datacube:a"))
	assert.False(t, mr.Exists("datacube:b"))
	assert.NoError(t, cache.Delete(ctx))
}

func TestCache_ClearOnlyTouchesPrefix(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, mr.Set("other:a", "keep"))

	require.NoError(t, cache.Clear(ctx))

	assert.False(t, mr.Exists("datacube:a"))
	assert.True(t, mr.Exists("other:a"))
}
