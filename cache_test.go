package appleid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_StoreAndFetch(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	_, ok := cache.Fetch(ctx, "applekeys")
	assert.False(t, ok, "empty cache must miss")

	value := []byte(`{"keys":[]}`)
	require.NoError(t, cache.Store(ctx, "applekeys", value, time.Minute))

	got, ok := cache.Fetch(ctx, "applekeys")
	require.True(t, ok)
	assert.Equal(t, value, got)

	got[0] = 'X'
	again, _ := cache.Fetch(ctx, "applekeys")
	assert.Equal(t, byte('{'), again[0], "callers must not be able to mutate cached values")

	value[0] = 'Y'
	again, _ = cache.Fetch(ctx, "applekeys")
	assert.Equal(t, byte('{'), again[0], "stored values are copied")
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewMemoryCache(WithClock(clock.Now))

	require.NoError(t, cache.Store(ctx, "k", []byte("v"), 10*time.Second))

	clock.Advance(9 * time.Second)
	_, ok := cache.Fetch(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = cache.Fetch(ctx, "k")
	assert.False(t, ok, "entry must expire once the ttl has elapsed")

	require.NoError(t, cache.Store(ctx, "k", []byte("v2"), 10*time.Second))
	got, ok := cache.Fetch(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
}

func TestMemoryCache_EmptyValuesAndNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	require.NoError(t, cache.Store(ctx, "empty", nil, time.Minute))
	_, ok := cache.Fetch(ctx, "empty")
	assert.False(t, ok, "empty entries read as misses")

	require.NoError(t, cache.Store(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, cache.Store(ctx, "k", []byte("v"), 0))
	_, ok = cache.Fetch(ctx, "k")
	assert.False(t, ok, "a zero ttl removes the entry")
}

func TestSharedCacheIsProcessWide(t *testing.T) {
	assert.Same(t, SharedCache(), SharedCache())
}
