package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func newRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache(WithRedisAddr(mr.Addr()), WithRedisPrefix("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", sample{Name: "x", Price: 1.5}, time.Minute))
	got, err := GetTyped[sample](ctx, mc, "a")
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "x", Price: 1.5}, got)

	raw := []byte(`{"name":"y"}`)
	mc.Store("b", raw, 0)
	var out []byte
	require.NoError(t, mc.Get(ctx, "b", &out))
	assert.Equal(t, raw, out)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &out), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()

	mc.Store("a", 1, 0)
	mc.Store("b", 2, 0)
	_, _ = mc.Load("a")
	mc.Store("c", 3, 0)

	_, ok := mc.Load("b")
	assert.False(t, ok)
	v, ok := mc.Load("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	mc.Store("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := mc.Load("k")
	assert.False(t, ok)
}

func TestMemoryCachePatternAndLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	mc.Store(Key("chart", "AAPL", "1M"), 1, 0)
	mc.Store(Key("chart", "AAPL", "1Y"), 1, 0)
	mc.Store(Key("chart", "MSFT", "1M"), 1, 0)
	require.NoError(t, mc.DeleteByPattern(ctx, Pattern(Key("chart", "AAPL"))))
	assert.Equal(t, 1, mc.Len())

	ok, _ := mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	rc, mr := newRedis(t)

	require.NoError(t, rc.Set(ctx, "s", sample{Name: "z", Price: 2}, time.Minute))
	assert.True(t, mr.Exists("test:s"))

	got, err := GetTyped[sample](ctx, rc, "s")
	require.NoError(t, err)
	assert.Equal(t, "z", got.Name)

	var missing sample
	assert.ErrorIs(t, rc.Get(ctx, "nope", &missing), ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "p:1", "a", 0))
	require.NoError(t, rc.Set(ctx, "p:2", "b", 0))
	require.NoError(t, rc.DeleteByPattern(ctx, Pattern("p:")))
	ok, err := rc.Exists(ctx, "p:1", "p:2")
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := rc.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, _ = rc.TryLock(ctx, "job", time.Minute)
	assert.False(t, locked)
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	ctx := context.Background()
	rc, _ := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemorySize(10))
	defer lc.Close()

	require.NoError(t, rc.Set(ctx, "only-l2", sample{Name: "l2"}, time.Minute))
	got, err := GetTyped[sample](ctx, lc, "only-l2")
	require.NoError(t, err)
	assert.Equal(t, "l2", got.Name)

	// now served from L1 even after L2 loses it
	require.NoError(t, rc.Delete(ctx, "only-l2"))
	got, err = GetTyped[sample](ctx, lc, "only-l2")
	require.NoError(t, err)
	assert.Equal(t, "l2", got.Name)

	require.NoError(t, lc.Delete(ctx, "only-l2"))
	_, err = GetTyped[sample](ctx, lc, "only-l2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "chart:AAPL:1M", Key("chart", "AAPL", "1M"))
	assert.Equal(t, "chart*", Pattern("chart"))
	assert.Len(t, HashKey("abc"), 32)
}
