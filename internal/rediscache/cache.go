// Package rediscache is an alternate backend for the Cache[V] abstraction
// (see SPEC_FULL.md §3), letting multiple pipeline instances share a verdict
// or MX cache over Redis instead of each keeping an in-process LRU.
//
// It generalizes forgedlabs-mail_sorter's getCachedResult/cacheResult JSON
// marshal-into-Redis pattern into a generic type, and adds the key
// namespacing and eviction-counter stub the in-process internal/lrucache
// otherwise provides.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optimode/mailverify/internal/lrucache"
)

// Cache is a Redis-backed implementation of the generic cache interface
// the core pipeline depends on. Its zero value is not usable.
type Cache[V any] struct {
	client    *redis.Client
	keyPrefix string
	ctxTTL    time.Duration // fallback TTL used if Set is called with ttl<=0

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps an existing *redis.Client. keyPrefix namespaces every key this
// Cache touches (e.g. "mailverify:verdict:").
func New[V any](client *redis.Client, keyPrefix string) *Cache[V] {
	return &Cache[V]{client: client, keyPrefix: keyPrefix, ctxTTL: 24 * time.Hour}
}

// Get fetches and JSON-decodes the value for key. A Redis miss, a
// connection error, or a decode failure are all reported as (zero, false):
// a degraded cache must never surface as a hard failure to callers.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if err != nil {
		c.misses.Add(1)
		return zero, false
	}

	var out V
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return out, true
}

// Set JSON-encodes value and stores it with the given TTL. Errors are
// swallowed (logged by the caller if it wants to), matching the "cache is
// an optimization, never a dependency" stance spec'd for A4.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ctxTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err()
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.client.Del(ctx, c.keyPrefix+key).Err()
}

// Flush deletes every key under this Cache's prefix. It uses SCAN rather
// than KEYS to avoid blocking a shared Redis instance.
func (c *Cache[V]) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			_ = c.client.Del(ctx, batch...).Err()
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		_ = c.client.Del(ctx, batch...).Err()
	}
}

// Size counts keys under this Cache's prefix via SCAN. Expensive; intended
// for diagnostics, not the hot path.
func (c *Cache[V]) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count := 0
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// Stats reports hit/miss counters tracked client-side. Evictions is always
// -1: Redis's own eviction policy is opaque to this client and is not
// something this type can observe.
func (c *Cache[V]) Stats() lrucache.Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return lrucache.Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: -1,
		Size:      c.Size(),
		HitRate:   rate,
	}
}

// ErrUnavailable is returned by Ping when the backing Redis instance cannot
// be reached; callers use it to decide whether to fall back to an
// in-process cache instead.
var ErrUnavailable = errors.New("rediscache: backend unavailable")

// Ping verifies connectivity to Redis.
func (c *Cache[V]) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return ErrUnavailable
	}
	return nil
}
