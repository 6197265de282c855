// Package redisx wraps the Redis pieces of the order service: checkout
// idempotency keys and the order read cache.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Connect returns a client only after the server answered a PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	r := New(addr)
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return r, nil
}
