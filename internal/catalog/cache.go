// internal/catalog/cache.go
// Short-lived cache for vendor catalog lookups. Uses Redis when available and
// falls back to an in-process map, so catalog endpoints work the same in
// single-node development setups.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/numbay/numbay-backend/internal/provider"
)

// PriceCache caches per-vendor, per-country product lists for a fixed TTL
type PriceCache struct {
	redis *redis.Client
	ttl   time.Duration

	mu    sync.RWMutex
	local map[string]localEntry
}

type localEntry struct {
	products  []provider.Product
	expiresAt time.Time
}

// NewPriceCache creates a catalog cache. The Redis client may be nil.
func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	return &PriceCache{
		redis: client,
		ttl:   ttl,
		local: make(map[string]localEntry),
	}
}

func cacheKey(vendor, country string) string {
	return fmt.Sprintf("catalog:%s:%s", vendor, country)
}

// Get returns the cached product list for a vendor/country, if still fresh
func (c *PriceCache) Get(ctx context.Context, vendor, country string) ([]provider.Product, bool) {
	key := cacheKey(vendor, country)

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var products []provider.Product
			if err := json.Unmarshal(data, &products); err == nil {
				return products, true
			}
		} else if err != redis.Nil {
			log.Printf("catalog: redis get failed for %s: %v", key, err)
		}
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.products, true
}

// Set stores the product list for a vendor/country
func (c *PriceCache) Set(ctx context.Context, vendor, country string, products []provider.Product) {
	key := cacheKey(vendor, country)

	if c.redis != nil {
		data, err := json.Marshal(products)
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("catalog: redis set failed for %s: %v", key, err)
		}
		return
	}

	c.mu.Lock()
	c.local[key] = localEntry{products: products, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
