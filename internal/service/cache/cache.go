package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "PriceLens/pkg/cache"
)

// BytesCache stores pre-encoded response bodies with a TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ServiceCache adapts a pkg/cache Service (memory, redis or layered) to
// BytesCache.
type ServiceCache struct {
	svc    pkgcache.Service
	prefix string
}

func NewServiceCache(svc pkgcache.Service, prefix string) *ServiceCache {
	return &ServiceCache{svc: svc, prefix: prefix}
}

func (c *ServiceCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return pkgcache.Key(c.prefix, k)
}

func (c *ServiceCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	var b []byte
	err := c.svc.Get(ctx, c.key(key), &b)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *ServiceCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.svc.Set(ctx, c.key(key), value, ttl)
}

// Purge drops every entry under the cache prefix.
func (c *ServiceCache) Purge(ctx context.Context) error {
	return c.svc.DeleteByPattern(ctx, pkgcache.Pattern(c.key("")))
}

// Remember returns the cached body for key, or calls fill and caches its
// result. A failing cache never fails the request.
func Remember(ctx context.Context, c BytesCache, key string, ttl time.Duration, fill func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if c != nil && ttl > 0 {
		if b, ok, err := c.GetBytes(ctx, key); err == nil && ok {
			return b, true, nil
		}
	}
	b, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	if c != nil && ttl > 0 {
		_ = c.SetBytes(ctx, key, b, ttl)
	}
	return b, false, nil
}
