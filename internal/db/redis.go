package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
)

// OpenRedis returns a pinged client for the HTTP rate limiter. An empty
// address yields (nil, nil) and the limiter stays off.
func OpenRedis(ctx context.Context, c config.RedisConfig) (*redis.Client, error) {
	if c.Addr == "" {
		return nil, nil
	}
	dial := c.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: dial,
	})
	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
	}
	return rdb, nil
}
