package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/car-maintenance-booking/internal/config"
)

// Socket timeouts are capped at half the lock TTL.
func clientOptions(cfg config.Config) *redis.Options {
	timeout := 2 * time.Second
	if cfg.LockTTL > 0 && cfg.LockTTL/2 < timeout {
		timeout = cfg.LockTTL / 2
	}
	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     20,
		MinIdleConns: 2,
	}
}

// Connect opens a client for the booking lock and pings it before returning.
func Connect(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(clientOptions(cfg))

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}
