// internal/placecache/cache_test.go
//
// Unit-tests for the by-id place cache.
//
// Run: go test ./internal/placecache -v

package placecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/yanizio/depot/internal/search"
	"github.com/yanizio/depot/internal/station"
)

func countingLoader(calls *int64) Loader {
	return func(ctx context.Context, id string) (*search.Place, error) {
		atomic.AddInt64(calls, 1)
		if id == "missing" {
			return nil, station.ErrNotFound
		}
		return &search.Place{ID: id, Name: "Station " + id}, nil
	}
}

func TestGet_LoadsOnceThenHits(t *testing.T) {
	var calls int64
	c := New(countingLoader(&calls), 8)

	for i := 0; i < 3; i++ {
		p, err := c.Get(context.Background(), "8000050")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if p.ID != "8000050" {
			t.Fatalf("unexpected place: %+v", p)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 loader call, got %d", calls)
	}
}

func TestGet_NotFoundNeverCached(t *testing.T) {
	var calls int64
	c := New(countingLoader(&calls), 8)

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, station.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("not-found must reach the loader every time, got %d calls", calls)
	}
	if c.Len() != 0 {
		t.Fatalf("not-found leaked into cache, len=%d", c.Len())
	}
}

func TestGet_ConcurrentMissesShareOneLoad(t *testing.T) {
	var calls int64
	block := make(chan struct{})
	c := New(func(ctx context.Context, id string) (*search.Place, error) {
		atomic.AddInt64(&calls, 1)
		<-block
		return &search.Place{ID: id}, nil
	}, 8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "8011160"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	close(block)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected singleflight to collapse to 1 load, got %d", calls)
	}
}

func TestGet_LoadSurvivesCallerCancellation(t *testing.T) {
	// The loader observes its own context: if Get handed it the caller's,
	// a cancelled request would fail the shared flight for everyone.
	c := New(func(ctx context.Context, id string) (*search.Place, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &search.Place{ID: id}, nil
	}, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := c.Get(ctx, "8000050")
	if err != nil {
		t.Fatalf("cancelled caller must not fail the load: %v", err)
	}
	if p.ID != "8000050" {
		t.Fatalf("unexpected place: %+v", p)
	}
}

func TestFlush_EmptiesCache(t *testing.T) {
	var calls int64
	c := New(countingLoader(&calls), 8)

	if _, err := c.Get(context.Background(), "9430007"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.Flush()
	if c.Len() != 0 {
		t.Fatalf("cache not empty after flush, len=%d", c.Len())
	}

	if _, err := c.Get(context.Background(), "9430007"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls != 2 {
		t.Fatalf("flushed entry should reload, got %d calls", calls)
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	var calls int64
	c := New(countingLoader(&calls), 2)

	ctx := context.Background()
	c.Get(ctx, "1")
	c.Get(ctx, "2")
	c.Get(ctx, "1") // "1" becomes MRU
	c.Get(ctx, "3") // evicts "2"

	calls = 0
	c.Get(ctx, "1")
	if calls != 0 {
		t.Fatal("MRU entry should still be cached")
	}
	c.Get(ctx, "2")
	if calls != 1 {
		t.Fatal("LRU entry should have been evicted")
	}
}
