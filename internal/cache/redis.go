package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache backs Cache with a shared Redis instance, used when multiple
// orchestrator replicas need to share resolver cache state.
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing go-redis client. prefix namespaces keys so
// the cache can share a Redis instance with other consumers.
func NewRedisCache(client *redis.Client, prefix string) Cache {
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}
