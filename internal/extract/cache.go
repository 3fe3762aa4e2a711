package extract

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"recipebox/internal/recipe"
)

// RedisCache keeps extraction results in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps client. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, payload []byte) error {
	return c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err()
}

// StoreCache keeps extraction results in the recipe database.
type StoreCache struct {
	store recipe.Store
}

func NewStoreCache(store recipe.Store) *StoreCache {
	return &StoreCache{store: store}
}

func (c *StoreCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.store.GetExtraction(ctx, key)
}

func (c *StoreCache) Set(ctx context.Context, key string, payload []byte) error {
	return c.store.SaveExtraction(ctx, key, payload)
}
