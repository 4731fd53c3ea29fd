package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/odds-watch/internal/models"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "fb.com_all_data, ipbl pro division, kazan, sochi",
		AllDataKey(models.SourceFB, "IPBL Pro Division", "Kazan", "Sochi"))
	assert.Equal(t, "akty.com_all_data, ipbl pro division",
		LeagueFeedKey(models.SourceAkty, "IPBL Pro Division"))
	assert.Equal(t, "akty.com, ipbl pro division, kazan, sochi",
		InterestingKey(models.SourceAkty, "IPBL Pro Division", "kazan", "sochi"))
}

func TestGameKeys(t *testing.T) {
	keys := GameKeys("IPBL Pro Division", "kazan", "sochi")

	assert.ElementsMatch(t, []string{
		"fb.com, ipbl pro division, kazan, sochi",
		"fb.com_all_data, ipbl pro division, kazan, sochi",
		"akty.com, ipbl pro division, kazan, sochi",
		"akty.com_all_data, ipbl pro division, kazan, sochi",
	}, keys)
}

func TestMemoryStore_AppendCapsList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Append(ctx, "k", []byte{byte(i)}, 4))
	}

	assert.Equal(t, 4, store.Len("k"))
	last, err := store.Last(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, last)
}

func TestMemoryStore_LastMissing(t *testing.T) {
	_, err := NewMemoryStore().Last(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_DeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Append(ctx, "b", []byte("2"), 0))

	require.NoError(t, store.Delete(ctx, "a"))
	assert.Equal(t, 0, store.Len("a"))
	assert.Equal(t, 1, store.Len("b"))

	require.NoError(t, store.Flush(ctx))
	assert.Equal(t, 0, store.Len("b"))
	assert.NoError(t, store.Ping(ctx))
}

func TestRateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rates := NewRateStore(NewMemoryStore(), 0)
	key := AllDataKey(models.SourceAkty, "IPBL Pro Division", "kazan", "sochi")

	missing, err := rates.LastRate(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, rates.AppendRate(ctx, key, models.StoredRate{TotalPoint: "150.5", TotalBet0: 1.9}))
	require.NoError(t, rates.AppendRate(ctx, key, models.StoredRate{TotalPoint: "151.5", TotalBet0: 1.65}))

	last, err := rates.LastRate(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "151.5", last.TotalPoint)
	assert.Equal(t, 1.65, last.TotalBet0)
}

func TestRateStore_DeleteGame(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	rates := NewRateStore(mem, 10)

	for _, key := range GameKeys("IPBL Pro Division", "kazan", "sochi") {
		require.NoError(t, rates.AppendRate(ctx, key, models.StoredRate{}))
	}
	feed := LeagueFeedKey(models.SourceFB, "IPBL Pro Division")
	require.NoError(t, rates.AppendRate(ctx, feed, models.StoredRate{}))

	require.NoError(t, rates.DeleteGame(ctx, "IPBL Pro Division", "kazan", "sochi"))

	for _, key := range GameKeys("IPBL Pro Division", "kazan", "sochi") {
		assert.Equal(t, 0, mem.Len(key), key)
	}
	assert.Equal(t, 1, mem.Len(feed), "league feed survives game deletion")
}
