package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Coalescer deduplicates concurrent fetches for an identical key: the
// producer runs at most once for the set of calls that overlap in time, and
// its result (or error) is shared by every waiter. The registration is
// cleared on completion, so the next independent call re-invokes the
// producer. This is the stampede protection for cache misses.
type Coalescer struct {
	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCoalescer creates an empty coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{inflight: make(map[string]struct{})}
}

// Do runs fn for key, sharing the result with all concurrent callers of the
// same key. The producer runs on a context detached from the caller's
// cancellation: an abandoned caller stops waiting, but the fetch completes
// and its result remains usable by the others.
func (c *Coalescer) Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	resCh := c.group.DoChan(key, func() (interface{}, error) {
		c.track(key)
		defer c.untrack(key)

		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-resCh:
		if res.Err != nil {
			return nil, res.Err
		}
		data, _ := res.Val.([]byte)
		return data, nil

	case <-ctx.Done():
		// Caller stopped waiting; the producer keeps running.
		return nil, ctx.Err()
	}
}

// Pending returns the number of keys with an in-flight producer.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Forget drops the registration for key so the next call re-invokes the
// producer even if one is still in flight.
func (c *Coalescer) Forget(key string) {
	c.group.Forget(key)
}

func (c *Coalescer) track(key string) {
	c.mu.Lock()
	c.inflight[key] = struct{}{}
	c.mu.Unlock()
}

func (c *Coalescer) untrack(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}
