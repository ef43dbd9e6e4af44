package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// SeriesCache caches computed daily-point series and present-moment balance
// reads in Redis. The series is immutable once computed for a request, so
// cache entries are plain JSON blobs with a TTL; range queries re-slice the
// cached series without recomputation.
type SeriesCache struct {
	redis      *RedisCache
	seriesTTL  time.Duration
	balanceTTL time.Duration
}

// NewSeriesCache creates a series cache.
func NewSeriesCache(redis *RedisCache, seriesTTL, balanceTTL time.Duration) *SeriesCache {
	return &SeriesCache{
		redis:      redis,
		seriesTTL:  seriesTTL,
		balanceTTL: balanceTTL,
	}
}

// SeriesKey builds the cache key for one position's series.
// Format: series:<address>:<token>:<side>:<version>
func SeriesKey(address string, key types.PositionKey) string {
	return fmt.Sprintf("series:%s:%s", strings.ToLower(address), key.String())
}

// BalanceKey builds the cache key for one present-moment balance read.
func BalanceKey(address, tokenAddress string) string {
	return fmt.Sprintf("balance:%s:%s", strings.ToLower(address), strings.ToLower(tokenAddress))
}

// GetSeries returns the cached series for a position, or (nil, false, nil)
// on a miss.
func (c *SeriesCache) GetSeries(ctx context.Context, address string, key types.PositionKey) ([]types.DailyPointDTO, bool, error) {
	raw, err := c.redis.Get(ctx, SeriesKey(address, key))
	if IsMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheError("series get", err)
	}

	var points []types.DailyPointDTO
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		return nil, false, nil
	}
	return points, true, nil
}

// PutSeries stores a computed series.
func (c *SeriesCache) PutSeries(ctx context.Context, address string, key types.PositionKey, points []types.DailyPointDTO) error {
	blob, err := json.Marshal(points)
	if err != nil {
		return errors.NewCacheError("series marshal", err)
	}
	if err := c.redis.Set(ctx, SeriesKey(address, key), blob, c.seriesTTL); err != nil {
		return errors.NewCacheError("series put", err)
	}
	return nil
}

// InvalidateSeries drops every cached series for the address.
func (c *SeriesCache) InvalidateSeries(ctx context.Context, address string) error {
	keys := make([]string, 0, 8)
	for _, token := range types.AllTokens() {
		for _, side := range types.AllSides() {
			for _, version := range types.AllVersions() {
				keys = append(keys, SeriesKey(address, types.PositionKey{Token: token, Side: side, Version: version}))
			}
		}
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		return errors.NewCacheError("series invalidate", err)
	}
	return nil
}

// GetBalance returns a cached present-moment balance as a decimal string,
// or ("", false, nil) on a miss.
func (c *SeriesCache) GetBalance(ctx context.Context, address, tokenAddress string) (string, bool, error) {
	raw, err := c.redis.Get(ctx, BalanceKey(address, tokenAddress))
	if IsMiss(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewCacheError("balance get", err)
	}
	return raw, true, nil
}

// PutBalance stores a present-moment balance read.
func (c *SeriesCache) PutBalance(ctx context.Context, address, tokenAddress, balance string) error {
	if err := c.redis.Set(ctx, BalanceKey(address, tokenAddress), balance, c.balanceTTL); err != nil {
		return errors.NewCacheError("balance put", err)
	}
	return nil
}
