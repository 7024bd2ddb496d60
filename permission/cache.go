package permission

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// CacheEvent identifies what happened during a cache operation.
type CacheEvent int

const (
	CacheHit CacheEvent = iota
	CacheMiss
	CacheInvalidated
	// CacheDiscarded means a recompute finished after an invalidation and
	// its result was dropped instead of stored.
	CacheDiscarded
)

// Entry is one cached permission set.
type Entry struct {
	OwnerID    string
	Set        Set
	ComputedAt time.Time
	generation uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithObserver registers fn to be called for every cache event.
func WithObserver(fn func(ev CacheEvent, ownerID string)) CacheOption {
	return func(c *Cache) { c.observe = fn }
}

// WithUnknownClaims registers fn to be called with claims that were not
// found in the registry when a set was computed.
func WithUnknownClaims(fn func(ownerID string, unknown []string)) CacheOption {
	return func(c *Cache) { c.onUnknown = fn }
}

// WithNow overrides the clock used for ComputedAt.
func WithNow(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// Cache holds one permission set per owner. Sets are computed lazily from
// a Resolver and dropped whole by Invalidate.
//
// Every owner has a generation. Invalidate moves an owner with a
// recompute in flight to a new generation under mu, and a computed set is
// only stored if the owner is still on the generation the computation
// started with. A recompute that races with Invalidate is therefore
// discarded and never observed by callers that arrive after Invalidate
// returns. An owner's generation is forgotten once its last recompute
// finishes, so the map only holds owners that are being computed.
type Cache struct {
	registry *Registry
	resolver Resolver
	store    *gocache.Cache
	group    singleflight.Group
	ttl      time.Duration

	mu          sync.Mutex
	counter     uint64
	floor       uint64
	generations map[string]uint64
	inflight    map[string]int

	observe   func(CacheEvent, string)
	onUnknown func(string, []string)
	now       func() time.Time
}

// NewCache builds a Cache. ttl <= 0 keeps sets until invalidated.
func NewCache(registry *Registry, resolver Resolver, ttl time.Duration, opts ...CacheOption) (*Cache, error) {
	if registry == nil {
		return nil, errors.New("permission cache requires registry")
	}
	if resolver == nil {
		return nil, errors.New("permission cache requires resolver")
	}

	expiry := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiry = ttl
		cleanup = ttl
	}

	c := &Cache{
		registry:    registry,
		resolver:    resolver,
		store:       gocache.New(expiry, cleanup),
		ttl:         expiry,
		generations: make(map[string]uint64),
		inflight:    make(map[string]int),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the permission set for ownerID, computing it on a miss.
// Concurrent misses for the same owner and generation share one resolve.
func (c *Cache) Get(ctx context.Context, ownerID string) (Set, error) {
	c.mu.Lock()
	gen := c.generationLocked(ownerID)
	c.mu.Unlock()

	if v, ok := c.store.Get(ownerID); ok {
		if e, ok := v.(*Entry); ok && e.generation == gen {
			c.emit(CacheHit, ownerID)
			return e.Set, nil
		}
	}
	c.emit(CacheMiss, ownerID)

	// The shared resolve must not inherit one caller's cancellation; each
	// caller waits on its own ctx instead.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ownerID+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return c.compute(shared, ownerID, gen)
	})
	select {
	case <-ctx.Done():
		return Set{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Set{}, res.Err
		}
		return res.Val.(*Entry).Set, nil
	}
}

// Has reports whether ownerID holds name.
func (c *Cache) Has(ctx context.Context, ownerID string, name Name) (bool, error) {
	set, err := c.Get(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return set.Has(name), nil
}

// Invalidate drops the cached set for ownerID. Any recompute already in
// flight for the owner will not be stored.
func (c *Cache) Invalidate(ownerID string) {
	c.mu.Lock()
	if c.inflight[ownerID] > 0 {
		c.counter++
		c.generations[ownerID] = c.counter
	}
	c.store.Delete(ownerID)
	c.mu.Unlock()

	c.emit(CacheInvalidated, ownerID)
}

// Flush drops every cached set.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.counter++
	c.floor = c.counter
	c.generations = make(map[string]uint64)
	c.store.Flush()
	c.mu.Unlock()
}

// Len returns the number of cached sets.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

func (c *Cache) compute(ctx context.Context, ownerID string, gen uint64) (*Entry, error) {
	c.mu.Lock()
	c.inflight[ownerID]++
	c.mu.Unlock()

	claims, err := c.resolver.Claims(ctx, ownerID)
	if err != nil {
		c.mu.Lock()
		c.doneLocked(ownerID)
		c.mu.Unlock()
		return nil, err
	}

	set, unknown := c.registry.ParseClaims(claims)
	if len(unknown) > 0 && c.onUnknown != nil {
		c.onUnknown(ownerID, unknown)
	}

	e := &Entry{
		OwnerID:    ownerID,
		Set:        set,
		ComputedAt: c.now(),
		generation: gen,
	}

	c.mu.Lock()
	current := c.generationLocked(ownerID)
	if current == gen {
		c.store.Set(ownerID, e, c.ttl)
	}
	c.doneLocked(ownerID)
	c.mu.Unlock()

	if current != gen {
		c.emit(CacheDiscarded, ownerID)
	}
	return e, nil
}

// doneLocked ends one recompute for ownerID. When it was the last one the
// owner's generation is dropped and a set stored under it is re-tagged to
// the floor generation so it stays valid.
func (c *Cache) doneLocked(ownerID string) {
	if c.inflight[ownerID]--; c.inflight[ownerID] > 0 {
		return
	}
	delete(c.inflight, ownerID)

	gen, ok := c.generations[ownerID]
	if !ok {
		return
	}
	delete(c.generations, ownerID)
	if gen <= c.floor {
		return
	}
	v, expires, found := c.store.GetWithExpiration(ownerID)
	if !found {
		return
	}
	if e, isEntry := v.(*Entry); isEntry && e.generation == gen {
		retagged := *e
		retagged.generation = c.floor
		ttl := gocache.NoExpiration
		if !expires.IsZero() {
			if ttl = time.Until(expires); ttl <= 0 {
				return
			}
		}
		c.store.Set(ownerID, &retagged, ttl)
	}
}

// trackedOwners reports how many owners currently have a generation of
// their own.
func (c *Cache) trackedOwners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.generations)
}

func (c *Cache) generationLocked(ownerID string) uint64 {
	if g, ok := c.generations[ownerID]; ok && g > c.floor {
		return g
	}
	return c.floor
}

func (c *Cache) emit(ev CacheEvent, ownerID string) {
	if c.observe != nil {
		c.observe(ev, ownerID)
	}
}
