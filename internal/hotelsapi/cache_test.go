package hotelsapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *RedisLocationCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisLocationCache(rdb, "test:loc:", time.Hour)
}

func TestRedisLocationCache(t *testing.T) {
	ctx := context.Background()
	mr, cache := newTestCache(t)

	_, ok, err := cache.Get(ctx, "Paris")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "  Paris ", "504261"))
	id, ok, err := cache.Get(ctx, "paris")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "504261", id)

	assert.True(t, mr.Exists("test:loc:paris"))
	mr.FastForward(2 * time.Hour)
	_, ok, err = cache.Get(ctx, "Paris")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocationsUsesCache(t *testing.T) {
	_, cache := newTestCache(t)

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"suggestions":[{"entities":[{"destinationId":"504261"}]}]}`))
	})
	c.WithCache(cache)

	for i := 0; i < 3; i++ {
		id, err := c.Locations(context.Background(), "Paris")
		require.NoError(t, err)
		assert.Equal(t, "504261", id)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocationsBypassesBrokenCache(t *testing.T) {
	mr, cache := newTestCache(t)
	mr.Close()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"suggestions":[{"entities":[{"destinationId":"42"}]}]}`))
	})
	c.WithCache(cache)

	id, err := c.Locations(context.Background(), "Rome")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}
