package mapbox

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Export runs
// label thousands of annotations around a handful of stations, so most
// reverse lookups repeat.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache[domain.Place]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache[domain.Place](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.Place, error) {
	return c.lookup("forward", "fwd:"+query, func() (domain.Place, error) {
		return c.inner.ForwardGeocode(ctx, query)
	})
}

// ReverseGeocode keys on coordinates rounded to roughly 100 m.
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Place, error) {
	key := fmt.Sprintf("rev:%.3f,%.3f", lat, lon)
	return c.lookup("reverse", key, func() (domain.Place, error) {
		return c.inner.ReverseGeocode(ctx, lat, lon)
	})
}

func (c *CachedGeocoder) lookup(method, key string, fetch func() (domain.Place, error)) (domain.Place, error) {
	if place, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()

	place, err := fetch()
	if err != nil {
		return place, err
	}
	// Empty results are not cached so a later call can retry.
	if place.Found() {
		c.cache.put(key, place)
	}
	return place, nil
}

// lruCache is a thread-safe LRU cache backed by container/list.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type lruEntry[V any] struct {
	key   string
	value V
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry[V]).key)
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
