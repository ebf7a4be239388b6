package cache

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Namespace is the key prefix for all accounting cache entries.
const Namespace = "accounting"

// Key builds a namespaced cache key: accounting:<category>[:<args>...].
func Key(category string, args ...string) string {
	parts := append([]string{Namespace, category}, args...)
	return strings.Join(parts, ":")
}

// Cache is a TTL'd store for derived, expensive-to-compute values. Redis is
// the primary backend; any backend failure degrades transparently to an
// in-process store so callers never see the outage.
type Cache struct {
	client *redis.Client
	local  *localStore
	logger *log.Logger
}

// New creates a cache over the given redis client. A nil client runs the
// cache purely in-process.
func New(client *redis.Client, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		client: client,
		local:  newLocalStore(),
		logger: logger,
	}
}

// Get returns the cached value for key. Entries past their TTL are never
// returned.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.client != nil {
		value, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return value, true
		}
		if err == redis.Nil {
			return nil, false
		}
		c.logger.Printf("cache backend unavailable, using local store key=%s err=%v", key, err)
	}
	return c.local.get(key)
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if c.client != nil {
		err := c.client.Set(ctx, key, value, ttl).Err()
		if err == nil {
			return
		}
		c.logger.Printf("cache backend unavailable, using local store key=%s err=%v", key, err)
	}
	c.local.set(key, value, ttl)
}

// InvalidateNamespace removes every key under the namespace. The policy is
// deliberately coarse: a mutating job clears the whole namespace so no stale
// entry can survive its commit.
func (c *Cache) InvalidateNamespace(ctx context.Context, namespace string) {
	prefix := namespace + ":"
	if c.client != nil {
		keys, err := c.client.Keys(ctx, prefix+"*").Result()
		if err != nil {
			c.logger.Printf("cache invalidation degraded namespace=%s err=%v", namespace, err)
		} else if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Printf("cache invalidation degraded namespace=%s err=%v", namespace, err)
			}
		}
	}
	c.local.deletePrefix(prefix)
}
