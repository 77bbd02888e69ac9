package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCacheVersionLifecycle(t *testing.T) {
	cache := redisCache(t, time.Minute)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	key, err := cache.BuildKey(ctx, "synthese", "report")
	require.NoError(t, err)
	require.Equal(t, "synthese:report:1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "synthese", "report")
	require.NoError(t, err)
	require.Equal(t, "synthese:report:2", key)
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	cache := redisCache(t, time.Minute)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (interface{}, error) {
		loads++
		return map[string]string{"etat": "ok"}, nil
	}

	var out map[string]string
	require.NoError(t, cache.FetchJSON(ctx, "k", &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, "k", &out, loader))
	require.Equal(t, 1, loads)
	require.Equal(t, "ok", out["etat"])
}

func TestCacheFetchJSONSurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)

	mr.SetError("connection refused")

	// Reads and writes both fail; the loader still serves the value.
	var out map[string]string
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (interface{}, error) {
		return map[string]string{"etat": "ok"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out["etat"])
}

func TestCacheFetchJSONRecomputesCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)

	require.NoError(t, mr.Set("k", "{not json"))

	loads := 0
	var out map[string]string
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (interface{}, error) {
		loads++
		return map[string]string{"etat": "ok"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, loads)
	require.Equal(t, "ok", out["etat"])
}

func TestCacheDisabledStillLoads(t *testing.T) {
	var cache *Cache

	var out map[string]string
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (interface{}, error) {
		return map[string]string{"etat": "ok"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out["etat"])
}
