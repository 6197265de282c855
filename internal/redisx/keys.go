package redisx

import "time"

const (
	// idem:order:create:{user_id}:{idempotency_key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// order:{order_id} -> order JSON
	KeyOrder = "order:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
)
