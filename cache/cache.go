// Package cache provides a multi-tier translation cache: an in-process
// local tier in front of an optional distributed store, with per-key request
// coalescing, stale-while-revalidate and tag/pattern invalidation.
//
// Failure semantics: any distributed-store error is caught, logged and
// treated as a miss for that tier. The read and write paths always have a
// well-defined outcome — serve from the other tier, or recompute.
package cache

import (
	"context"
	"time"
)

// Store is the contract for the distributed key-value tier. Implementations
// must map "not found" to ok == false, not to an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// Keys returns the keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// SAdd and SMembers maintain tag membership sets.
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Size(ctx context.Context) (int64, error)
	Info(ctx context.Context) (StoreInfo, error)
}

// StoreInfo is a health snapshot of the distributed store.
type StoreInfo struct {
	Connected  bool          `json:"connected"`
	UsedMemory string        `json:"used_memory,omitempty"`
	TotalKeys  int64         `json:"total_keys"`
	HitRate    float64       `json:"hit_rate"`
	Uptime     time.Duration `json:"uptime"`
}

// Options control a single cache write or GetOrSet call.
type Options struct {
	// TTL is the freshness window. Entries older than TTL are stale.
	TTL time.Duration

	// StaleWindow is how long past expiry an entry may still be served
	// while a background revalidation runs. Zero disables stale serving.
	StaleWindow time.Duration

	// Tags register the key in membership sets for bulk invalidation.
	Tags []string

	// ContextKey, when non-empty, is appended to the key so contextual
	// variants of the same logical key do not collide with each other.
	ContextKey string
}

// Stats is the observability snapshot of a multi-tier cache.
type Stats struct {
	LocalSize      int       `json:"local_cache_size"`
	PendingFetches int       `json:"pending_requests"`
	Store          StoreInfo `json:"store"`
}
