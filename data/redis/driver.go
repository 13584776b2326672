// Package redis registers the Redis cache driver. The connection backs the
// Redis job store, quota counters, the rate limiter and the asynq
// dispatcher.
package redis

import (
	"context"
	"fmt"

	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/data"
	"github.com/redis/go-redis/v9"
)

type driver struct{}

func (d *driver) Name() string {
	return config.DriverRedis
}

func (d *driver) Connect(ctx context.Context, cfg any) (any, error) {
	redisCfg, ok := cfg.(*config.Redis)
	if !ok {
		return nil, fmt.Errorf("redis: invalid configuration type, expected *config.Redis")
	}

	if redisCfg.Addr == "" {
		return nil, fmt.Errorf("redis: address is empty")
	}

	client := redis.NewClient(Options(redisCfg))

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return client, nil
}

func (d *driver) Close(conn any) error {
	client, ok := conn.(*redis.Client)
	if !ok {
		return fmt.Errorf("redis: invalid connection type, expected *redis.Client")
	}

	if err := client.Close(); err != nil {
		return fmt.Errorf("redis: failed to close connection: %w", err)
	}

	return nil
}

func (d *driver) Ping(ctx context.Context, conn any) error {
	client, ok := conn.(*redis.Client)
	if !ok {
		return fmt.Errorf("redis: invalid connection type, expected *redis.Client")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}

// Options converts the configuration into go-redis client options.
func Options(c *config.Redis) *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		DialTimeout:  c.DialTimeout,
	}
}

func init() {
	data.RegisterCacheDriver(&driver{})
}
