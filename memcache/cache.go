// Package memcache provides an LRU cache of object field values, which is
// placed ahead of persistent storage within a serialize.Chain.
package memcache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.ircservices.dev/core/metrics"
	"go.ircservices.dev/core/serialize"
)

// Cache is a serialize.Hooks which caches observed field values of objects.
// Where a cached value is available, reads are answered without consulting
// later Hooks of the Chain. Writes update the Cache and are then Declined,
// so that they continue on to persistent storage.
//
//	// Place a Cache ahead of a Bridge.
//	var objs = serialize.NewObjects(reg, serialize.Chain{memcache.New(4096, time.Hour), bridge})
type Cache struct {
	cache *expirable.LRU[cacheKey, cachedValue]
}

var (
	_ serialize.Hooks     = (*Cache)(nil)
	_ serialize.Populator = (*Cache)(nil)
)

// New returns a Cache of the given size (which must be > 0). Entries older
// than |ttl| are evicted. A zero |ttl| never expires entries.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		panic("memcache: size must be > 0")
	}
	return &Cache{cache: expirable.NewLRU[cacheKey, cachedValue](size, nil, ttl)}
}

type cacheKey struct {
	typ   string
	id    serialize.ID
	field string
}

type cachedValue struct {
	scalar string
	ref    serialize.Ref
}

func keyOf(o *serialize.Object, f *serialize.Field) cacheKey {
	return cacheKey{typ: o.Type().Name(), id: o.ID, field: f.Name}
}

func (c *Cache) lookup(o *serialize.Object, f *serialize.Field) (cachedValue, bool) {
	if cv, ok := c.cache.Get(keyOf(o, f)); ok {
		metrics.ObjectCacheRequestsTotal.WithLabelValues(metrics.Hit).Inc()
		return cv, true
	}
	metrics.ObjectCacheRequestsTotal.WithLabelValues(metrics.Miss).Inc()
	return cachedValue{}, false
}

// Len returns the number of cached values.
func (c *Cache) Len() int { return c.cache.Len() }

// Purge all cached values. It's called when storage is rebound, and when
// a transaction of the storage fails to commit.
func (c *Cache) Purge() { c.cache.Purge() }

// PopulateScalar caches |value| of Field |f| of |o|.
func (c *Cache) PopulateScalar(o *serialize.Object, f *serialize.Field, value string) {
	c.cache.Add(keyOf(o, f), cachedValue{scalar: value})
}

// PopulateReference caches |ref| of Field |f| of |o|.
func (c *Cache) PopulateReference(o *serialize.Object, f *serialize.Field, ref serialize.Ref) {
	c.cache.Add(keyOf(o, f), cachedValue{ref: ref})
}

// GetScalar answers from the Cache, or Declines.
func (c *Cache) GetScalar(o *serialize.Object, f *serialize.Field) serialize.Result[string] {
	if f.IsReference() {
		return serialize.Decline[string]()
	} else if cv, ok := c.lookup(o, f); ok {
		return serialize.Handle(cv.scalar)
	}
	return serialize.Decline[string]()
}

// GetReference answers from the Cache, or Declines.
func (c *Cache) GetReference(o *serialize.Object, f *serialize.Field) serialize.Result[serialize.Ref] {
	if !f.IsReference() {
		return serialize.Decline[serialize.Ref]()
	} else if cv, ok := c.lookup(o, f); ok {
		return serialize.Handle(cv.ref)
	}
	return serialize.Decline[serialize.Ref]()
}

// HasField materializes a cached value onto |o|, or Declines.
func (c *Cache) HasField(o *serialize.Object, f *serialize.Field) serialize.Result[bool] {
	var cv, ok = c.lookup(o, f)
	if !ok {
		return serialize.Decline[bool]()
	}
	if f.IsReference() {
		o.MaterializeRef(f, cv.ref)
	} else {
		o.Materialize(f, cv.scalar)
	}
	return serialize.Handle(true)
}

// SetScalar caches |value| and Declines.
func (c *Cache) SetScalar(o *serialize.Object, f *serialize.Field, value string) serialize.Result[serialize.None] {
	c.PopulateScalar(o, f, value)
	return serialize.Decline[serialize.None]()
}

// SetReference caches the Ref of |target| and Declines. A nil |target|
// evicts the cached reference.
func (c *Cache) SetReference(o *serialize.Object, f *serialize.Field, target *serialize.Object) serialize.Result[serialize.None] {
	if target == nil {
		c.cache.Remove(keyOf(o, f))
	} else {
		c.PopulateReference(o, f, target.Ref())
	}
	return serialize.Decline[serialize.None]()
}

// UnsetScalar evicts the cached value and Declines.
func (c *Cache) UnsetScalar(o *serialize.Object, f *serialize.Field) serialize.Result[serialize.None] {
	c.cache.Remove(keyOf(o, f))
	return serialize.Decline[serialize.None]()
}

// UnsetReference evicts the cached reference and Declines.
func (c *Cache) UnsetReference(o *serialize.Object, f *serialize.Field) serialize.Result[serialize.None] {
	c.cache.Remove(keyOf(o, f))
	return serialize.Decline[serialize.None]()
}

// DeleteObject evicts every cached Field of |o| and Declines.
func (c *Cache) DeleteObject(o *serialize.Object) serialize.Result[serialize.None] {
	for _, f := range o.Type().Fields() {
		c.cache.Remove(keyOf(o, f))
	}
	return serialize.Decline[serialize.None]()
}

// ListIDs Declines.
func (c *Cache) ListIDs(*serialize.Type) serialize.Result[[]serialize.ID] {
	return serialize.Decline[[]serialize.ID]()
}

// FindID Declines.
func (c *Cache) FindID(*serialize.Type, *serialize.Field, string) serialize.Result[serialize.ID] {
	return serialize.Decline[serialize.ID]()
}

// Exists Declines.
func (c *Cache) Exists(*serialize.Type, serialize.ID) serialize.Result[bool] {
	return serialize.Decline[bool]()
}

// GetEdges Declines.
func (c *Cache) GetEdges(*serialize.Object, *serialize.Type) serialize.Result[[]serialize.Edge] {
	return serialize.Decline[[]serialize.Edge]()
}

// AllocateID Declines.
func (c *Cache) AllocateID(*serialize.Type) serialize.Result[serialize.ID] {
	return serialize.Decline[serialize.ID]()
}

func (c *Cache) Create(*serialize.Object) {}
