package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache.
// A cache built with a non-positive TTL is disabled and never stores anything.
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
}

// NewInMemoryCache creates a cache whose entries expire after ttl
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	if ttl <= 0 {
		return &InMemoryCache{}
	}
	return &InMemoryCache{
		cache:   goCache.New(ttl, 2*ttl),
		enabled: true,
	}
}

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}

	span := StartCacheSpan(ctx, "inmemory", "get", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	v, found := c.cache.Get(key)
	if span != nil {
		span.SetData("hit", found)
	}
	return v, found
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration <= 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	if !c.enabled {
		return
	}
	c.cache.Delete(key)
}
