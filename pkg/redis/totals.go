package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/zombiestats/tracker/pkg/rediskey"
	"github.com/zombiestats/tracker/pkg/storage"
)

const TotalsExpiration = time.Minute * 5

var ErrCacheMiss = errors.New("totals not cached")

type TotalsSource interface {
	QueryTotals(ctx context.Context) (storage.Totals, error)
}

func (redisDriver *Driver) GetTotals(ctx context.Context) (storage.Totals, error) {
	b, err := redisDriver.client.Get(ctx, rediskey.Totals).Bytes()
	if errors.Is(err, redisv8.Nil) {
		return storage.Totals{}, ErrCacheMiss
	} else if err != nil {
		return storage.Totals{}, err
	}
	var totals storage.Totals
	if err := json.Unmarshal(b, &totals); err != nil {
		redisDriver.logger.Warn().Err(err).Msg("discarding undecodable cached totals")
		return storage.Totals{}, ErrCacheMiss
	}
	return totals, nil
}

func (redisDriver *Driver) RefreshTotals(ctx context.Context, source TotalsSource) (storage.Totals, error) {
	totals, err := source.QueryTotals(ctx)
	if err != nil {
		return storage.Totals{}, err
	}
	b, err := json.Marshal(totals)
	if err != nil {
		return storage.Totals{}, err
	}
	if err := redisDriver.client.Set(ctx, rediskey.Totals, b, TotalsExpiration).Err(); err != nil {
		redisDriver.logger.Error().Err(err).Msg("failed to cache totals")
	}
	return totals, nil
}

// TotalsCache serves totals from Redis and falls back to the database on a miss.
type TotalsCache struct {
	driver *Driver
	source TotalsSource
}

func (redisDriver *Driver) TotalsCache(source TotalsSource) *TotalsCache {
	return &TotalsCache{driver: redisDriver, source: source}
}

func (c *TotalsCache) CachedTotals(ctx context.Context) (storage.Totals, error) {
	totals, err := c.driver.GetTotals(ctx)
	if err == nil {
		return totals, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.driver.logger.Error().Err(err).Msg("failed to read cached totals")
	}
	return c.Refresh(ctx)
}

func (c *TotalsCache) Refresh(ctx context.Context) (storage.Totals, error) {
	return c.driver.RefreshTotals(ctx, c.source)
}
