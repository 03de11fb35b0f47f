package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key prefix for cached last prices.
// Format: journal:last_price:{symbol}
const priceKeyPrefix = "journal:last_price"

// PriceCache stores the most recent price per symbol in Redis with a short
// TTL so monitoring ticks don't hammer the REST endpoint between updates.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewPriceCache creates a price cache. A zero ttl defaults to 10 seconds.
func NewPriceCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *PriceCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &PriceCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "price_cache").Logger(),
	}
}

// Get returns the cached price for symbol, or false when missing/expired.
func (pc *PriceCache) Get(ctx context.Context, symbol string) (float64, bool) {
	if pc.client == nil {
		return 0, false
	}
	key := fmt.Sprintf("%s:%s", priceKeyPrefix, symbol)
	val, err := pc.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			pc.logger.Debug().Err(err).Str("symbol", symbol).Msg("price cache read failed")
		}
		return 0, false
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// Set stores the latest price for symbol. Failures are logged and dropped;
// the REST path remains the source of truth.
func (pc *PriceCache) Set(ctx context.Context, symbol string, price float64) {
	if pc.client == nil {
		return
	}
	key := fmt.Sprintf("%s:%s", priceKeyPrefix, symbol)
	if err := pc.client.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), pc.ttl).Err(); err != nil {
		pc.logger.Debug().Err(err).Str("symbol", symbol).Msg("price cache write failed")
	}
}

// CachedProvider serves GetCurrentPrice from the cache when fresh and falls
// through to the wrapped provider otherwise. Kline fetches pass through.
type CachedProvider struct {
	Provider
	cache *PriceCache
}

// NewCachedProvider wraps a provider with a price cache. A nil cache
// returns the provider unchanged.
func NewCachedProvider(p Provider, cache *PriceCache) Provider {
	if cache == nil {
		return p
	}
	return &CachedProvider{Provider: p, cache: cache}
}

// GetCurrentPrice checks the cache before hitting the REST endpoint.
func (cp *CachedProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if price, ok := cp.cache.Get(ctx, symbol); ok {
		return price, nil
	}
	price, err := cp.Provider.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	cp.cache.Set(ctx, symbol, price)
	return price, nil
}
