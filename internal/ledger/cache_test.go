package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	key, err := cache.BuildKey(ctx, keyAdvance(7)...)
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return map[string]string{"advance_balance": "180"}, nil
	}

	var first map[string]string
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, "180", first["advance_balance"])
	require.Equal(t, 1, calls)

	var second map[string]string
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, "180", second["advance_balance"])
	require.Equal(t, 1, calls)
}

func TestCacheBumpInvalidates(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	before, err := cache.BuildKey(ctx, "ledger", "statement", "CUSTOMER", "1")
	require.NoError(t, err)

	var out string
	require.NoError(t, cache.FetchJSON(ctx, before, &out, func(ctx context.Context) (interface{}, error) {
		return "stale", nil
	}))

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "ledger", "statement", "CUSTOMER", "1")
	require.NoError(t, err)
	require.NotEqual(t, before, after)

	require.NoError(t, cache.FetchJSON(ctx, after, &out, func(ctx context.Context) (interface{}, error) {
		return "fresh", nil
	}))
	require.Equal(t, "fresh", out)
}

func TestCacheNilClientPassThrough(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(nil, time.Minute)

	var out int
	require.NoError(t, cache.FetchJSON(ctx, "anything", &out, func(ctx context.Context) (interface{}, error) {
		return 42, nil
	}))
	require.Equal(t, 42, out)

	require.NoError(t, cache.Bump(ctx))
}

func TestCacheLoaderErrorPropagates(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	boom := errors.New("load failed")
	var out string
	err := cache.FetchJSON(ctx, "ledger:test:err", &out, func(ctx context.Context) (interface{}, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
}
