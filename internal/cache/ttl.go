// Package cache provides a generic, thread-safe TTL cache with a background
// sweep. Instances are owned by their constructor's caller and injected where
// needed; there is no package-level cache state.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool { return now.After(e.expiresAt) }

// TTL is a time-bounded cache. Entries expire ttl after their last Set; a
// sweep goroutine removes expired entries so steady-state memory is bounded
// by the keys touched within one TTL window.
type TTL[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]*entry[V]

	metrics *Metrics

	cancel context.CancelFunc
	done   chan struct{}
}

// Metrics carries the optional Prometheus instruments for one cache.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
}

// NewMetrics registers hit/miss/eviction counters for the named cache.
func NewMetrics(reg prometheus.Registerer, name string) (*Metrics, error) {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appview_cache_hits_total", ConstLabels: prometheus.Labels{"cache": name},
			Help: "Cache lookups served from memory.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appview_cache_misses_total", ConstLabels: prometheus.Labels{"cache": name},
			Help: "Cache lookups that fell through.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appview_cache_evictions_total", ConstLabels: prometheus.Labels{"cache": name},
			Help: "Entries removed by TTL expiry.",
		}),
	}
	for _, c := range []prometheus.Counter{m.Hits, m.Misses, m.Evictions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewTTL creates a cache and starts its sweep loop. The loop stops when ctx
// is cancelled or Close is called. metrics may be nil.
func NewTTL[V any](ctx context.Context, ttl, sweepInterval time.Duration, metrics *Metrics) *TTL[V] {
	ctx, cancel := context.WithCancel(ctx)
	c := &TTL[V]{
		ttl:     ttl,
		items:   make(map[string]*entry[V]),
		metrics: metrics,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.sweep(ctx, sweepInterval)
	return c
}

// Get returns the cached value when present and unexpired.
func (c *TTL[V]) Get(key string) (V, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || e.expired(now) {
		if ok {
			// Lazy eviction; the sweep would get it eventually.
			c.mu.Lock()
			if cur, still := c.items[key]; still && cur.expired(now) {
				delete(c.items, key)
				c.evicted()
			}
			c.mu.Unlock()
		}
		if c.metrics != nil {
			c.metrics.Misses.Inc()
		}
		var zero V
		return zero, false
	}

	if c.metrics != nil {
		c.metrics.Hits.Inc()
	}
	return e.value, true
}

// Set stores value under key, resetting its TTL.
func (c *TTL[V]) Set(key string, value V) {
	e := &entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
}

// Delete removes key immediately. Used for explicit invalidation.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the current entry count, expired entries included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the sweep goroutine and waits for it to exit. The cache stays
// usable afterwards; only background expiry stops.
func (c *TTL[V]) Close() {
	c.cancel()
	<-c.done
}

func (c *TTL[V]) sweep(ctx context.Context, interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.removeExpired(time.Now())
		}
	}
}

func (c *TTL[V]) removeExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
			c.evicted()
		}
	}
}

func (c *TTL[V]) evicted() {
	if c.metrics != nil {
		c.metrics.Evictions.Inc()
	}
}
