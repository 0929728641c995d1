package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebwren/portfolio-ai/internal/portfolio"
)

func TestResponseCacheKeyNormalizesMessage(t *testing.T) {
	a := ResponseCacheKey("gpt-4o-mini", "  Tell me   about GO ", nil)
	b := ResponseCacheKey("gpt-4o-mini", "tell me about go", nil)
	assert.Equal(t, a, b)

	c := ResponseCacheKey("gpt-4o-mini", "tell me about rust", nil)
	assert.NotEqual(t, a, c)
}

func TestResponseCacheKeyScopedToModelAndPrompts(t *testing.T) {
	base := ResponseCacheKey("gpt-4o-mini", "hello", nil)
	otherModel := ResponseCacheKey("gpt-4o", "hello", nil)
	assert.NotEqual(t, base, otherModel)

	prompts := []portfolio.Prompt{{Text: "mention availability", Active: true}}
	withPrompt := ResponseCacheKey("gpt-4o-mini", "hello", prompts)
	assert.NotEqual(t, base, withPrompt)

	// Inactive prompts do not contribute to the fingerprint.
	inactive := []portfolio.Prompt{{Text: "mention availability", Active: false}}
	assert.Equal(t, base, ResponseCacheKey("gpt-4o-mini", "hello", inactive))

	// Prompt order is irrelevant.
	two := []portfolio.Prompt{{Text: "a", Active: true}, {Text: "b", Active: true}}
	reversed := []portfolio.Prompt{{Text: "b", Active: true}, {Text: "a", Active: true}}
	assert.Equal(t,
		ResponseCacheKey("gpt-4o-mini", "hello", two),
		ResponseCacheKey("gpt-4o-mini", "hello", reversed),
	)
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(10)

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok, _ = cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(10)
	now := time.Now()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	cache.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok, _ := cache.Get(ctx, "k")
	assert.False(t, ok, "expired entry must miss")
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(2)
	_ = cache.Set(ctx, "a", "1", time.Minute)
	_ = cache.Set(ctx, "b", "2", time.Minute)
	_ = cache.Set(ctx, "c", "3", time.Minute)

	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok, _ = cache.Get(ctx, "c")
	assert.True(t, ok)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewRedisCache(client)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "chat:resp:m:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "chat:resp:m:k", "cached reply", time.Hour))
	got, ok, err := cache.Get(ctx, "chat:resp:m:k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cached reply", got)

	srv.FastForward(2 * time.Hour)
	_, ok, _ = cache.Get(ctx, "chat:resp:m:k")
	assert.False(t, ok, "TTL must expire entries")
}

func TestRedisCacheClear(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewRedisCache(client)
	ctx := context.Background()

	_ = cache.Set(ctx, "chat:resp:m:one", "1", time.Hour)
	_ = cache.Set(ctx, "chat:resp:m:two", "2", time.Hour)
	require.NoError(t, cache.Clear(ctx))

	_, ok, _ := cache.Get(ctx, "chat:resp:m:one")
	assert.False(t, ok)
}
