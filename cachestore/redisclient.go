package cachestore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arran4/httpcore/httpconfig"
)

// NewRedisClient builds a redis.UniversalClient from cfg and verifies
// connectivity with a Ping, adapted from chproxy's clients.NewRedisClient
// (generalized from config.RedisCacheConfig to httpconfig.RedisConfig, and
// from go-redis/v8 to the v9 client the rest of this module depends on).
func NewRedisClient(cfg httpconfig.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addresses,
		Username: cfg.Username,
		Password: cfg.Password,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cachestore: failed to reach redis: %w", err)
	}

	return client, nil
}
