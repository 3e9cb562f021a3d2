// Package cache opens Redis clients shared by the job queue and session storage.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// New creates a Redis client for addr and verifies it with a ping.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	return NewWithOptions(ctx, &redis.Options{Addr: addr})
}

// NewWithOptions creates a Redis client from full options.
func NewWithOptions(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}
