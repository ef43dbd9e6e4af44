package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealToken-Community/gainorloss/internal/types"
)

func newTestCache(t *testing.T) (*SeriesCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSeriesCache(NewRedisCacheFromClient(client), 5*time.Minute, 30*time.Second), mr
}

var testKey = types.PositionKey{
	Token:   types.TokenWXDAI,
	Side:    types.SideSupply,
	Version: types.VersionV3,
}

const testAddress = "0x1111111111111111111111111111111111111111"

func testPoints() []types.DailyPointDTO {
	return []types.DailyPointDTO{
		{
			Date:           20240301,
			Timestamp:      1709294400,
			Balance:        "1000000000000000000",
			PeriodInterest: "0",
			TotalInterest:  "0",
			MovementAmount: "1000000000000000000",
			MovementType:   types.MovementSupply,
			Source:         types.SourceReal,
		},
		{
			Date:           20240302,
			Timestamp:      1709380800,
			Balance:        "1000050000000000000",
			PeriodInterest: "50000000000000",
			TotalInterest:  "50000000000000",
			Source:         types.SourceReal,
		},
	}
}

func TestSeriesCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok, err := cache.GetSeries(ctx, testAddress, testKey)
	require.NoError(t, err)
	assert.False(t, ok, "expected a miss on an empty cache")

	require.NoError(t, cache.PutSeries(ctx, testAddress, testKey, testPoints()))

	got, ok, err := cache.GetSeries(ctx, testAddress, testKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testPoints(), got)
}

func TestSeriesCacheKeyIsCaseInsensitiveOnAddress(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PutSeries(ctx, testAddress, testKey, testPoints()))

	upper := "0X1111111111111111111111111111111111111111"
	_, ok, err := cache.GetSeries(ctx, upper, testKey)
	require.NoError(t, err)
	assert.True(t, ok, "checksummed and lowercased forms must share one entry")
}

func TestSeriesCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PutSeries(ctx, testAddress, testKey, testPoints()))

	mr.FastForward(6 * time.Minute)

	_, ok, err := cache.GetSeries(ctx, testAddress, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeriesCacheCorruptEntryIsAMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	mr.Set(SeriesKey(testAddress, testKey), "{not json")

	_, ok, err := cache.GetSeries(ctx, testAddress, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateSeriesDropsEveryPosition(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	other := types.PositionKey{Token: types.TokenUSDC, Side: types.SideDebt, Version: types.VersionV2}
	require.NoError(t, cache.PutSeries(ctx, testAddress, testKey, testPoints()))
	require.NoError(t, cache.PutSeries(ctx, testAddress, other, testPoints()))

	require.NoError(t, cache.InvalidateSeries(ctx, testAddress))

	_, ok, err := cache.GetSeries(ctx, testAddress, testKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = cache.GetSeries(ctx, testAddress, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBalanceCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	tokenAddr := "0x7349c9eaa538e118725a6130e0f8341509b9f8a0"

	_, ok, err := cache.GetBalance(ctx, testAddress, tokenAddr)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.PutBalance(ctx, testAddress, tokenAddr, "123456789012345678901234567890"))

	got, ok, err := cache.GetBalance(ctx, testAddress, tokenAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "123456789012345678901234567890", got)

	// Balance entries turn over much faster than series entries.
	mr.FastForward(time.Minute)
	_, ok, err = cache.GetBalance(ctx, testAddress, tokenAddr)
	require.NoError(t, err)
	assert.False(t, ok)
}
