package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/odds-watch/internal/models"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_AppendTrims(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Append(ctx, "list", []byte(v), 3))
	}

	items, err := mr.List("list")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, items)

	last, err := store.Last(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, "d", string(last))
}

func TestRedisStore_LastMissing(t *testing.T) {
	store, _ := setupRedisStore(t)

	_, err := store.Last(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedisStore_DeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)

	require.NoError(t, store.Append(ctx, "x", []byte("1"), 0))
	require.NoError(t, store.Append(ctx, "y", []byte("1"), 0))
	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx, "x"))
	assert.False(t, mr.Exists("x"))
	assert.True(t, mr.Exists("y"))

	require.NoError(t, store.Flush(ctx))
	assert.False(t, mr.Exists("y"))
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_WithRateStore(t *testing.T) {
	ctx := context.Background()
	store, _ := setupRedisStore(t)
	rates := NewRateStore(store, DefaultListCap)

	key := AllDataKey(models.SourceFB, "Rocket Basketball League", "don", "oka")
	require.NoError(t, rates.AppendRate(ctx, key, models.StoredRate{TotalPoint: "140.5", HandicapBet1: 1.62}))

	got, err := rates.LastRate(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1.62, got.HandicapBet1)
}
