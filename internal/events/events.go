// Package events defines the notification contract services publish through
// and the envelope every payload travels in.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics mirror the broker exchanges the storefront was built around.
const (
	TopicOrders   = "order_events"
	TopicCarts    = "cart_events"
	TopicUsers    = "user_events"
	TopicProducts = "product_events"
)

const (
	OrderCreated     = "order.created"
	CartItemAdded    = "cart.item.added"
	CartItemRemoved  = "cart.item.removed"
	CartItemUpdated  = "cart.item.updated"
	CartCleared      = "cart.cleared"
	UserRegistered   = "user.registered"
	UserUpdated      = "user.updated"
	ProductCreated   = "product.created"
	ProductUpdated   = "product.updated"
	ProductDeleted   = "product.deleted"
	ProductRestocked = "product.restocked"
)

// OrderStatusEvent names the event for a status transition, e.g. order.confirmed.
func OrderStatusEvent(status string) string { return "order." + status }

// Notifier is fire-and-forget: a nil error means the event was accepted for
// delivery, not that anyone received it. Callers log failures and move on.
type Notifier interface {
	Publish(ctx context.Context, topic, eventName string, payload []byte) error
}

// Discard is used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, string, []byte) error { return nil }

type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	EventVersion  int             `json:"eventVersion"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"traceId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Encode wraps payload in a version 1 envelope. correlationID doubles as the
// partition key, so all events of one order/cart/user stay ordered.
func Encode(eventName, producer, correlationID string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventName, err)
	}
	return json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventName,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       p,
	})
}

// Decode unwraps an envelope and its typed payload.
func Decode[T any](b []byte) (Envelope, T, error) {
	var env Envelope
	var t T
	if err := json.Unmarshal(b, &env); err != nil {
		return env, t, fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return env, t, fmt.Errorf("decode payload: %w", err)
	}
	return env, t, nil
}

// CorrelationID reads the partition key back out of an encoded envelope.
func CorrelationID(b []byte) string {
	var env struct {
		CorrelationID string `json:"correlationId"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return ""
	}
	return env.CorrelationID
}
