package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"feedback-gateway/internal/domain"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedis создаёт кэш. Все ключи получают префикс prefix.
func NewRedis(client redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	return value, err
}

var _ domain.Cache = (*RedisCache)(nil)
