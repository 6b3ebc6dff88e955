package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/facesearch/internal/config"
)

var errCacheMiss = errors.New("cache miss")

// RedisImageCache keeps recently downloaded reference images.
type RedisImageCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisImageCache(cfg config.RedisConfig) *RedisImageCache {
	return &RedisImageCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.ImageTTL,
	}
}

func imageCacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "fs:image:" + hex.EncodeToString(sum[:])
}

func (c *RedisImageCache) Get(ctx context.Context, url string) ([]byte, error) {
	data, err := c.client.Get(ctx, imageCacheKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (c *RedisImageCache) Set(ctx context.Context, url string, data []byte) error {
	if err := c.client.Set(ctx, imageCacheKey(url), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisImageCache) Delete(ctx context.Context, url string) error {
	return c.client.Del(ctx, imageCacheKey(url)).Err()
}

func (c *RedisImageCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisImageCache) Close() error {
	return c.client.Close()
}
