package internal

import (
	"context"
	"fmt"
	"net"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal/config"
	"github.com/2beens/gideon/internal/storage"
)

// OpenBackend opens the storage backend selected in cfg. The returned redis client is nil
// unless the redis backend is used, and closing the backend also closes the client.
func OpenBackend(ctx context.Context, cfg *config.Config, redisPassword string) (storage.Backend, *redis.Client, error) {
	params := storage.OpenParams{
		Kind:           cfg.StorageBackend,
		RedisKeyPrefix: cfg.RedisKeyPrefix,
		Badger: storage.BadgerConfig{
			Path:       cfg.BadgerPath,
			SyncWrites: true,
		},
	}

	var rdb *redis.Client
	if cfg.StorageBackend == config.BackendRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: redisPassword,
			DB:       0, // use default DB
		})
		rdb.AddHook(redisotel.NewTracingHook())

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
		params.RedisClient = rdb
	}

	backend, err := storage.Open(params)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, fmt.Errorf("open %s storage backend: %w", cfg.StorageBackend, err)
	}

	log.Debugf("using [%s] storage backend", cfg.StorageBackend)
	return backend, rdb, nil
}
