package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// envelope is the wire form of a distributed entry. The physical Redis TTL
// is ttl+staleWindow; ExpiresAt carries the logical freshness boundary so
// readers can tell fresh from stale-servable.
type envelope struct {
	Value     []byte    `json:"v"`
	Tags      []string  `json:"tags,omitempty"`
	ExpiresAt time.Time `json:"exp"`
}

// MultiTierCache orchestrates the local tier, the distributed store and the
// request coalescer. It is constructed once per process and owns all local
// cache state; the distributed store is the shared owner of record across
// processes.
type MultiTierCache struct {
	local     *LocalCache
	store     Store // nil means local-only
	coalescer *Coalescer
	logger    *slog.Logger
	defaults  Options

	revalidateTimeout time.Duration
}

// Option is a functional option for configuring the MultiTierCache.
type Option func(*MultiTierCache)

// WithStore attaches a distributed tier.
func WithStore(store Store) Option {
	return func(c *MultiTierCache) {
		c.store = store
	}
}

// WithLogger sets the logger for degraded-path reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *MultiTierCache) {
		c.logger = logger
	}
}

// WithDefaults sets fallback options applied when a call leaves them zero.
func WithDefaults(defaults Options) Option {
	return func(c *MultiTierCache) {
		c.defaults = defaults
	}
}

// New creates a multi-tier cache. Without WithStore it degrades gracefully
// to a coalesced local cache.
func New(opts ...Option) *MultiTierCache {
	c := &MultiTierCache{
		local:             NewLocalCache(),
		coalescer:         NewCoalescer(),
		defaults:          Options{TTL: time.Hour},
		revalidateTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// GetOrSetBytes returns the cached value for key, or computes it with fetch.
//
// Lookup order: fresh local entry, fresh distributed entry (which
// repopulates the local tier), stale entry within its stale window (served
// immediately while exactly one background revalidation runs), and finally
// a coalesced fetch whose result is written to both tiers.
func (c *MultiTierCache) GetOrSetBytes(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), opts Options) ([]byte, error) {
	opts = c.withDefaults(opts)
	cacheKey := deriveKey(key, opts)

	// Local tier.
	value, fresh, ok := c.local.GetStale(cacheKey)
	if ok && fresh {
		return value, nil
	}
	localStale := ok

	// Distributed tier.
	if env, found := c.storeGet(ctx, cacheKey); found {
		now := time.Now()
		if now.Before(env.ExpiresAt) {
			c.local.Set(cacheKey, env.Value, env.Tags, time.Until(env.ExpiresAt), opts.StaleWindow)
			return env.Value, nil
		}
		// Physically present past ExpiresAt means within the stale window,
		// since the Redis TTL was ttl+staleWindow.
		c.revalidate(cacheKey, fetch, opts)
		return env.Value, nil
	}

	if localStale {
		c.revalidate(cacheKey, fetch, opts)
		return value, nil
	}

	// Miss on both tiers: fetch with coalescing and populate.
	return c.fetchAndStore(ctx, cacheKey, fetch, opts)
}

// Set writes a value to both tiers unconditionally and registers its tags.
// Distributed failures are logged and do not fail the call.
func (c *MultiTierCache) Set(ctx context.Context, key string, value []byte, opts Options) error {
	opts = c.withDefaults(opts)
	c.storeBoth(ctx, deriveKey(key, opts), value, opts)
	return nil
}

// Invalidate removes keys from both tiers.
func (c *MultiTierCache) Invalidate(ctx context.Context, keys ...string) {
	c.local.Delete(keys...)
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Warn("distributed invalidate failed", "keys", len(keys), "error", err)
	}
}

// InvalidateByTags resolves each tag to its member keys and removes the
// members plus the membership record from both tiers. A dangling member
// (already expired) deletes as a no-op.
func (c *MultiTierCache) InvalidateByTags(ctx context.Context, tags []string) {
	c.local.DeleteByTags(tags)

	if c.store == nil {
		return
	}

	for _, tag := range tags {
		members, err := c.store.SMembers(ctx, tagKey(tag))
		if err != nil {
			c.logger.Warn("tag member lookup failed", "tag", tag, "error", err)
			continue
		}

		doomed := append(members, tagKey(tag))
		if err := c.store.Delete(ctx, doomed...); err != nil {
			c.logger.Warn("tag invalidation failed", "tag", tag, "error", err)
			continue
		}
		// Members cached locally under the same keys go too.
		c.local.Delete(members...)
	}
}

// InvalidateByPattern removes all keys matching a glob pattern from both tiers.
func (c *MultiTierCache) InvalidateByPattern(ctx context.Context, pattern string) {
	c.local.DeleteByPattern(pattern)

	if c.store == nil {
		return
	}

	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		c.logger.Warn("pattern scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Warn("pattern invalidation failed", "pattern", pattern, "error", err)
		return
	}
	c.local.Delete(keys...)
}

// Stats reports local size, pending coalesced fetches and distributed-store
// health. It never fails: an unreachable store reports Connected: false.
func (c *MultiTierCache) Stats(ctx context.Context) Stats {
	stats := Stats{
		LocalSize:      c.local.Len(),
		PendingFetches: c.coalescer.Pending(),
	}

	if c.store == nil {
		return stats
	}

	info, err := c.store.Info(ctx)
	if err != nil {
		c.logger.Warn("store info failed", "error", err)
		return stats
	}
	stats.Store = info
	return stats
}

// Local exposes the local tier, mainly for tests and debugging.
func (c *MultiTierCache) Local() *LocalCache {
	return c.local
}

// fetchAndStore runs the coalesced fetch and writes the result to both tiers.
func (c *MultiTierCache) fetchAndStore(ctx context.Context, cacheKey string, fetch func(context.Context) ([]byte, error), opts Options) ([]byte, error) {
	return c.coalescer.Do(ctx, cacheKey, func(fctx context.Context) ([]byte, error) {
		value, err := fetch(fctx)
		if err != nil {
			// Propagates to every coalesced waiter; the registration is
			// cleared so the next independent call can retry.
			return nil, err
		}
		c.storeBoth(fctx, cacheKey, value, opts)
		return value, nil
	})
}

// revalidate schedules a detached background refresh. Coalescing on the
// cache key guarantees at most one refresh regardless of how many stale
// reads trigger it; its failure is logged, never surfaced, and the next
// read re-evaluates freshness naturally.
func (c *MultiTierCache) revalidate(cacheKey string, fetch func(context.Context) ([]byte, error), opts Options) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.revalidateTimeout)
		defer cancel()

		if _, err := c.fetchAndStore(ctx, cacheKey, fetch, opts); err != nil {
			c.logger.Warn("background revalidation failed", "key", cacheKey, "error", err)
		}
	}()
}

// storeBoth writes the local tier synchronously and the distributed tier
// best-effort, registering tag memberships alongside the value.
func (c *MultiTierCache) storeBoth(ctx context.Context, cacheKey string, value []byte, opts Options) {
	c.local.Set(cacheKey, value, opts.Tags, opts.TTL, opts.StaleWindow)

	if c.store == nil {
		return
	}

	env := envelope{
		Value:     value,
		Tags:      opts.Tags,
		ExpiresAt: time.Now().Add(opts.TTL),
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Warn("encoding cache entry failed", "key", cacheKey, "error", err)
		return
	}

	physicalTTL := opts.TTL + opts.StaleWindow
	if err := c.store.Set(ctx, cacheKey, data, physicalTTL); err != nil {
		c.logger.Warn("distributed cache write failed", "key", cacheKey, "error", err)
		return
	}

	// Tag membership is not transactional with the value write; a crash in
	// between leaves a dangling member, which a later tag invalidation
	// deletes as a no-op.
	for _, tag := range opts.Tags {
		if err := c.store.SAdd(ctx, tagKey(tag), cacheKey); err != nil {
			c.logger.Warn("tag registration failed", "tag", tag, "error", err)
			continue
		}
		if err := c.store.Expire(ctx, tagKey(tag), physicalTTL); err != nil {
			c.logger.Warn("tag expiry failed", "tag", tag, "error", err)
		}
	}
}

// storeGet reads and decodes a distributed entry. Errors degrade to a miss;
// corrupt payloads are deleted so they cannot poison later reads.
func (c *MultiTierCache) storeGet(ctx context.Context, cacheKey string) (envelope, bool) {
	if c.store == nil {
		return envelope{}, false
	}

	data, ok, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		c.logger.Warn("distributed cache read failed", "key", cacheKey, "error", err)
		return envelope{}, false
	}
	if !ok {
		return envelope{}, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "key", cacheKey, "error", err)
		if delErr := c.store.Delete(ctx, cacheKey); delErr != nil {
			c.logger.Warn("corrupt entry delete failed", "key", cacheKey, "error", delErr)
		}
		return envelope{}, false
	}
	return env, true
}

func (c *MultiTierCache) withDefaults(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = c.defaults.TTL
	}
	if opts.StaleWindow == 0 {
		opts.StaleWindow = c.defaults.StaleWindow
	}
	return opts
}

func deriveKey(key string, opts Options) string {
	if opts.ContextKey != "" {
		return key + ":" + opts.ContextKey
	}
	return key
}

func tagKey(tag string) string {
	return "tag:" + tag
}

// GetOrSet is the typed convenience wrapper around GetOrSetBytes, using JSON
// for (de)serialization at the API boundary.
func GetOrSet[T any](ctx context.Context, c *MultiTierCache, key string, fetch func(context.Context) (T, error), opts Options) (T, error) {
	var zero T

	data, err := c.GetOrSetBytes(ctx, key, func(fctx context.Context) ([]byte, error) {
		value, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	}, opts)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, err
	}
	return out, nil
}
