package storage

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindBadger = "badger"
)

type OpenParams struct {
	Kind           string
	RedisClient    *redis.Client
	RedisKeyPrefix string
	Badger         BadgerConfig
}

// Open creates the backend selected by params.Kind.
func Open(params OpenParams) (Backend, error) {
	switch params.Kind {
	case KindMemory:
		return NewMemoryBackend(), nil
	case KindRedis:
		if params.RedisClient == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
		return NewRedisBackend(params.RedisClient, params.RedisKeyPrefix), nil
	case KindBadger:
		return OpenBadgerBackend(params.Badger)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", params.Kind)
	}
}
