package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (interfaces.CachePort, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCacheFromClient(client), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))

	val, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
}

func TestRedisCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, utils.ErrCacheMiss)
}

func TestRedisCache_MerchantIsolation(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetWithMerchant(ctx, "sync:cursor", []byte("a"), "m1", 0))
	require.NoError(t, c.SetWithMerchant(ctx, "sync:cursor", []byte("b"), "m2", 0))

	val, err := c.GetWithMerchant(ctx, "sync:cursor", "m1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), val)

	val, err = c.GetWithMerchant(ctx, "sync:cursor", "m2")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), val)

	// ключ одного мерчанта не виден без префикса
	_, err = c.Get(ctx, "sync:cursor")
	assert.ErrorIs(t, err, utils.ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), 0))
	require.NoError(t, c.Delete(ctx, "key"))

	_, err := c.Get(ctx, "key")
	assert.ErrorIs(t, err, utils.ErrCacheMiss)
}

func TestRedisCache_Lock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	locked, err := c.LockWithMerchant(ctx, "sync:lock", "m1", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	// повторная блокировка того же ключа отклоняется
	locked, err = c.LockWithMerchant(ctx, "sync:lock", "m1", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	// блокировка другого мерчанта независима
	locked, err = c.LockWithMerchant(ctx, "sync:lock", "m2", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, c.UnlockWithMerchant(ctx, "sync:lock", "m1"))

	locked, err = c.LockWithMerchant(ctx, "sync:lock", "m1", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestRedisCache_LockExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	locked, err := c.Lock(ctx, "job", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, locked)

	mr.FastForward(200 * time.Millisecond)

	locked, err = c.Lock(ctx, "job", 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, locked)
}
