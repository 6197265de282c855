package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/techguru-shop/internal/orders"
)

// OrderCache implements orders.Cache. Redis errors degrade to cache misses.
type OrderCache struct {
	R   *redis.Client
	TTL time.Duration
	Log *slog.Logger
}

var _ orders.Cache = (*OrderCache)(nil)

func NewOrderCache(r *redis.Client, log *slog.Logger) *OrderCache {
	return &OrderCache{R: r, TTL: TTLOrderCache, Log: log}
}

func (c *OrderCache) Get(ctx context.Context, orderID string) (orders.Order, bool) {
	b, err := c.R.Get(ctx, fmt.Sprintf(KeyOrder, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.Log.Warn("order cache get", "order_id", orderID, "err", err)
		}
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		c.Log.Warn("order cache decode", "order_id", orderID, "err", err)
		return orders.Order{}, false
	}
	return o, true
}

func (c *OrderCache) Set(ctx context.Context, o orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.R.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, c.TTL).Err(); err != nil {
		c.Log.Warn("order cache set", "order_id", o.ID, "err", err)
	}
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID string) {
	if err := c.R.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err(); err != nil {
		c.Log.Warn("order cache invalidate", "order_id", orderID, "err", err)
	}
}
