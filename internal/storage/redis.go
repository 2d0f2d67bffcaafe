package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

var _ Backend = (*RedisBackend)(nil)

type RedisBackend struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisBackend(redisClient *redis.Client, keyPrefix string) *RedisBackend {
	return &RedisBackend{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
	}
}

func (rb *RedisBackend) key(key string) string {
	return rb.keyPrefix + key
}

func (rb *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := rb.redisClient.Get(ctx, rb.key(key))
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return []byte(cmd.Val()), nil
}

func (rb *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	cmd := rb.redisClient.Set(ctx, rb.key(key), string(value), 0)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (rb *RedisBackend) Delete(ctx context.Context, key string) error {
	cmd := rb.redisClient.Del(ctx, rb.key(key))
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (rb *RedisBackend) Close() error {
	return rb.redisClient.Close()
}
