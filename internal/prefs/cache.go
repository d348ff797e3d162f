// Package prefs caches a viewer's externally-stored preference set. The
// cache is a pure performance layer: dropping it at any time only costs
// latency on the next read.
package prefs

import (
	"context"
	"time"

	"github.com/halcyon-social/halcyon/appview/internal/cache"
	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
)

// Cache is a read-through preference cache with write invalidation.
type Cache struct {
	store store.Prefs
	ttl   *cache.TTL[*model.Preferences]
}

// NewCache wraps the preference store with a TTL cache.
func NewCache(s store.Prefs, ttl *cache.TTL[*model.Preferences]) *Cache {
	return &Cache{store: s, ttl: ttl}
}

// Get returns the viewer's preferences, reading through to the store on a
// cache miss and populating the cache on success.
func (c *Cache) Get(ctx context.Context, viewer string) (*model.Preferences, error) {
	if p, ok := c.ttl.Get(viewer); ok {
		return p, nil
	}
	p, err := c.store.Get(ctx, viewer)
	if err != nil {
		return nil, err
	}
	c.ttl.Set(viewer, p)
	return p, nil
}

// Put writes through to the store and invalidates the cached entry, so the
// next Get re-reads the authoritative value.
func (c *Cache) Put(ctx context.Context, prefs *model.Preferences) error {
	if err := c.store.Put(ctx, prefs); err != nil {
		return err
	}
	c.Invalidate(prefs.DID)
	return nil
}

// Invalidate drops the cached entry for viewer.
func (c *Cache) Invalidate(viewer string) { c.ttl.Delete(viewer) }

// NewTTL builds the underlying TTL cache with the package defaults.
func NewTTL(ctx context.Context, ttl, sweep time.Duration, metrics *cache.Metrics) *cache.TTL[*model.Preferences] {
	return cache.NewTTL[*model.Preferences](ctx, ttl, sweep, metrics)
}
