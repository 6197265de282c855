package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

const pendingMarker = "pending"

// ErrInProgress is returned by Claim while another request holds the key.
var ErrInProgress = fmt.Errorf("idempotent request in progress: %w", apperr.ErrConflict)

type Idempotency struct {
	R   *redis.Client
	TTL time.Duration
}

func NewIdempotency(r *redis.Client) *Idempotency {
	return &Idempotency{R: r, TTL: TTLIdempotency}
}

// Claim takes the key for a new request. When the key already finished it
// returns the order id it produced and claimed=false.
func (i *Idempotency) Claim(ctx context.Context, userID, key string) (orderID string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	ok, err := i.R.SetNX(ctx, k, pendingMarker, i.TTL).Result()
	if err != nil {
		return "", false, apperr.Unavailable("redis", err)
	}
	if ok {
		return "", true, nil
	}
	v, err := i.R.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		ok, err = i.R.SetNX(ctx, k, pendingMarker, i.TTL).Result()
		if err != nil {
			return "", false, apperr.Unavailable("redis", err)
		}
		if ok {
			return "", true, nil
		}
		return "", false, ErrInProgress
	}
	if err != nil {
		return "", false, apperr.Unavailable("redis", err)
	}
	if v == pendingMarker {
		return "", false, ErrInProgress
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	if err := i.R.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), orderID, i.TTL).Err(); err != nil {
		return apperr.Unavailable("redis", err)
	}
	return nil
}

// Abandon frees the key after a failed attempt so the client may retry.
func (i *Idempotency) Abandon(ctx context.Context, userID, key string) error {
	if err := i.R.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key)).Err(); err != nil {
		return apperr.Unavailable("redis", err)
	}
	return nil
}
