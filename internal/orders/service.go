package orders

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/events"
)

type CreatedPayload struct {
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      Status          `json:"status"`
	Items       []Line          `json:"items"`
}

type StatusPayload struct {
	OrderID        string `json:"orderId"`
	UserID         string `json:"userId"`
	Status         Status `json:"status"`
	PreviousStatus Status `json:"previousStatus"`
}

// Cache is an optional read-through cache for GetByID.
type Cache interface {
	Get(ctx context.Context, orderID string) (Order, bool)
	Set(ctx context.Context, o Order)
	Invalidate(ctx context.Context, orderID string)
}

// Service is the read and status surface of the order service. Creation goes
// through the checkout orchestrator.
type Service struct {
	Store    Store
	Notifier events.Notifier
	Cache    Cache
	Producer string
	Log      *slog.Logger
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	if s.Cache != nil {
		if o, ok := s.Cache.Get(ctx, orderID); ok {
			return o, nil
		}
	}
	o, err := s.Store.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, o)
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ListByUser(ctx, userID)
}

// SetStatus applies the transition and then publishes order.<status>; a
// failed publish is logged, the transition stands.
func (s *Service) SetStatus(ctx context.Context, orderID string, to Status) (Order, error) {
	o, err := s.Store.SetStatus(ctx, orderID, to)
	if err != nil {
		return Order{}, err
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, orderID)
	}

	var prev Status
	if n := len(o.History); n > 0 {
		prev = o.History[n-1].From
	}
	name := events.OrderStatusEvent(string(to))
	payload, err := events.Encode(name, s.Producer, o.ID, StatusPayload{
		OrderID: o.ID, UserID: o.UserID, Status: o.Status, PreviousStatus: prev,
	})
	if err == nil {
		err = s.Notifier.Publish(ctx, events.TopicOrders, name, payload)
	}
	if err != nil {
		s.Log.Warn("publish order status event", "order_id", o.ID, "event", name, "err", err)
	}
	return o, nil
}
