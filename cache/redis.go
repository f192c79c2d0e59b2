package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the Redis-backed distributed tier. It also serves as the
// persistence backend for translation units (it satisfies gotmem.UnitStore).
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	URL       string // Redis connection URL (e.g., "redis://localhost:6379")
	KeyPrefix string // Prefix for all keys (default: "gotmem:")
}

const defaultKeyPrefix = "gotmem:"

// NewRedisStore creates a Redis store and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisStoreFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreFromClient creates a RedisStore from an existing Redis client.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Get retrieves a value. Absence is (nil, false, nil), not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores a value with a TTL. A non-positive ttl stores without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err()
}

// Delete removes keys. Deleting an absent key is a no-op.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.keyPrefix + key
	}
	return s.client.Del(ctx, full...).Err()
}

// Keys returns all keys matching a glob pattern, with the prefix stripped.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string

	iter := s.client.Scan(ctx, 0, s.keyPrefix+pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// SAdd adds members to a set.
func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.client.SAdd(ctx, s.keyPrefix+key, args...).Err()
}

// SMembers returns the members of a set.
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, s.keyPrefix+key).Result()
}

// Expire sets a TTL on an existing key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.keyPrefix+key, ttl).Err()
}

// Size returns the number of keys in the database.
func (s *RedisStore) Size(ctx context.Context) (int64, error) {
	return s.client.DBSize(ctx).Result()
}

// Info returns a health snapshot parsed from INFO plus DBSIZE.
func (s *RedisStore) Info(ctx context.Context) (StoreInfo, error) {
	raw, err := s.client.Info(ctx).Result()
	if err != nil {
		return StoreInfo{}, err
	}

	info := StoreInfo{Connected: true}
	var hits, misses float64

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch name {
		case "used_memory_human":
			info.UsedMemory = value
		case "keyspace_hits":
			hits, _ = strconv.ParseFloat(value, 64)
		case "keyspace_misses":
			misses, _ = strconv.ParseFloat(value, 64)
		case "uptime_in_seconds":
			secs, _ := strconv.ParseInt(value, 10, 64)
			info.Uptime = time.Duration(secs) * time.Second
		}
	}

	if hits+misses > 0 {
		info.HitRate = hits / (hits + misses)
	}

	if size, err := s.client.DBSize(ctx).Result(); err == nil {
		info.TotalKeys = size
	}

	return info, nil
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Verify RedisStore implements Store
var _ Store = (*RedisStore)(nil)
