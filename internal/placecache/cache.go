// internal/placecache/cache.go
//
// Read-through LRU for by-id place lookups.
//
// Context
// -------
// `GET /places/{id}` traffic is heavily skewed toward a small set of popular
// stations, and the backing row is immutable between sync runs.  This cache
// sits between the HTTP adapter and the search engine: hits skip the store,
// misses are deduplicated through singleflight so a burst of identical
// lookups costs one query, and a completed sync flushes everything.
//
// Workflow
// --------
//  1. Get(ctx, id) answers from the LRU when possible.
//  2. On a miss, concurrent callers of the same id share one loader call.
//  3. Flush() empties the cache; the sync entrypoint calls it after a
//     successful replace so stale rows never outlive a dataset.
//
// Notes
// -----
// • Not-found results are not cached; the loader's error passes through.
// • The loader runs on a context detached from the triggering request, so
//   a coalesced flight never dies with its first caller.
// • Keys are UIC strings, values are search.Place copies.
// • Oxford commas, two spaces after periods.
package placecache

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/yanizio/depot/internal/metrics"
	"github.com/yanizio/depot/internal/search"
)

// DefaultCapacity bounds the cache.  A few thousand places covers every
// realistically popular station while staying a rounding error of memory.
const DefaultCapacity = 1024

// Loader resolves one place by id on a cache miss.  *search.Engine.ByID
// satisfies it.
type Loader func(ctx context.Context, id string) (*search.Place, error)

type entry struct {
	id    string
	place search.Place
}

// Cache is a bounded, flush-on-sync, singleflight-guarded place cache.
// Zero value is unusable; construct with New.
type Cache struct {
	load Loader
	sfg  singleflight.Group

	mu   sync.Mutex
	cap  int
	ll   *list.List
	dict map[string]*list.Element
}

// New returns a Cache over the given loader.  Panics on capacity < 1.
func New(load Loader, capacity int) *Cache {
	if capacity < 1 {
		panic("placecache: capacity must be ≥1")
	}
	return &Cache{
		load: load,
		cap:  capacity,
		ll:   list.New(),
		dict: make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached place or loads and stores it.  Errors (including
// station.ErrNotFound) come straight from the loader and are never cached.
func (c *Cache) Get(ctx context.Context, id string) (*search.Place, error) {
	if p, ok := c.lookup(id); ok {
		metrics.PlaceCacheHitsTotal.Inc()
		return p, nil
	}
	metrics.PlaceCacheMissesTotal.Inc()

	// The flight is shared across callers, so the load runs on a detached
	// context: the first caller disconnecting must not fail every
	// coalesced waiter with its cancellation.
	loadCtx := context.WithoutCancel(ctx)

	v, err, _ := c.sfg.Do(id, func() (interface{}, error) {
		// Double-check after the singleflight barrier.
		if p, ok := c.lookup(id); ok {
			return p, nil
		}
		p, err := c.load(loadCtx, id)
		if err != nil {
			return nil, err
		}
		c.store(id, *p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*search.Place), nil
}

// Flush drops every entry.  Called after a successful sync run replaces the
// dataset.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.ll.Init()
	c.dict = make(map[string]*list.Element, c.cap)
	c.mu.Unlock()
}

// Len reports current size.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// lookup retrieves a copy and marks the entry MRU.
func (c *Cache) lookup(id string) (*search.Place, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ele, ok := c.dict[id]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(ele)
	p := ele.Value.(entry).place
	return &p, true
}

// store inserts or refreshes an entry, evicting the LRU tail past capacity.
func (c *Cache) store(id string, p search.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.dict[id]; ok {
		ele.Value = entry{id, p}
		c.ll.MoveToFront(ele)
		return
	}
	ele := c.ll.PushFront(entry{id, p})
	c.dict[id] = ele
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.dict, last.Value.(entry).id)
	}
}
