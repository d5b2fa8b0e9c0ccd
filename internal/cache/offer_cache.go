package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OfferQuote is the cached checkout price for one storefront SKU.
type OfferQuote struct {
	SKU          string          `json:"sku"`
	ProviderSlug string          `json:"providerSlug"`
	SellPrice    decimal.Decimal `json:"sellPrice"`
	Currency     string          `json:"currency"`
	CachedAt     time.Time       `json:"cachedAt"`
}

// OfferCache caches per-SKU checkout quotes so the storefront can render
// prices without hitting the best-offer table on every page view. Entries
// are short-lived; the pricing rebuild invalidates nothing here because the
// TTL keeps staleness bounded.
type OfferCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewOfferCache creates a new OfferCache with a 5 minute TTL.
func NewOfferCache(redis *RedisClient) *OfferCache {
	return &OfferCache{redis: redis, ttl: 5 * time.Minute}
}

func (c *OfferCache) key(sku string) string {
	return fmt.Sprintf("offer:quote:%s", sku)
}

// Set stores a quote for a SKU.
func (c *OfferCache) Set(ctx context.Context, quote *OfferQuote) error {
	quote.CachedAt = time.Now()
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal offer quote: %w", err)
	}
	return c.redis.Set(ctx, c.key(quote.SKU), string(data), c.ttl)
}

// Get retrieves a cached quote for a SKU, or an error on cache miss.
func (c *OfferCache) Get(ctx context.Context, sku string) (*OfferQuote, error) {
	data, err := c.redis.Get(ctx, c.key(sku))
	if err != nil {
		return nil, err
	}
	var quote OfferQuote
	if err := json.Unmarshal([]byte(data), &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offer quote: %w", err)
	}
	return &quote, nil
}

// Invalidate drops the cached quote for a SKU.
func (c *OfferCache) Invalidate(ctx context.Context, sku string) error {
	return c.redis.Delete(ctx, c.key(sku))
}
